package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	noSSL := false

	tests := []struct {
		name    string
		raw     map[string]any
		want    *Params
		wantErr string
	}{
		{name: "no params", raw: nil, want: &Params{}},
		{
			name: "numeric settings decode as strings",
			raw: map[string]any{
				"extensions": []any{"httpfs"},
				"settings":   map[string]any{"threads": 4, "memory_limit": "2GB"},
			},
			want: &Params{
				Extensions: []string{"httpfs"},
				Settings:   map[string]string{"threads": "4", "memory_limit": "2GB"},
			},
		},
		{
			name: "secret for a parquet bucket",
			raw: map[string]any{
				"secrets": []any{map[string]any{
					"type":      "s3",
					"provider":  "config",
					"scope":     []any{"s3://observations", "s3://archive"},
					"key_id":    "id",
					"secret":    "key",
					"endpoint":  "localhost:9000",
					"url_style": "path",
					"use_ssl":   false,
				}},
			},
			want: &Params{Secrets: []SecretConfig{{
				Type:     "s3",
				Provider: "config",
				Scope:    []any{"s3://observations", "s3://archive"},
				KeyID:    "id",
				Secret:   "key",
				Endpoint: "localhost:9000",
				URLStyle: "path",
				UseSSL:   &noSSL,
			}}},
		},
		{
			name:    "unknown key",
			raw:     map[string]any{"extension": []any{"json"}},
			wantErr: "invalid duckdb params",
		},
		{
			name:    "wrong shape",
			raw:     map[string]any{"secrets": "s3"},
			wantErr: "invalid duckdb params",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.raw)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCreateSecretSQL(t *testing.T) {
	ssl := true

	tests := []struct {
		name   string
		secret SecretConfig
		want   string
	}{
		{
			name:   "credential chain",
			secret: SecretConfig{Type: "s3", Provider: "credential_chain", Region: "eu-north-1"},
			want:   "CREATE SECRET (\n    TYPE s3,\n    PROVIDER credential_chain,\n    REGION 'eu-north-1'\n)",
		},
		{
			name:   "single scope",
			secret: SecretConfig{Type: "gcs", Scope: "gs://obs"},
			want:   "CREATE SECRET (\n    TYPE gcs,\n    SCOPE 'gs://obs'\n)",
		},
		{
			name:   "several scopes and ssl",
			secret: SecretConfig{Type: "s3", Scope: []string{"s3://a", "s3://b"}, UseSSL: &ssl},
			want:   "CREATE SECRET (\n    TYPE s3,\n    SCOPE ('s3://a', 's3://b'),\n    USE_SSL true\n)",
		},
		{
			name:   "quotes in values",
			secret: SecretConfig{Type: "s3", KeyID: "it's", Secret: "k"},
			want:   "CREATE SECRET (\n    TYPE s3,\n    KEY_ID 'it''s',\n    SECRET 'k'\n)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.secret))
		})
	}
}
