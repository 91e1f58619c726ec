package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supaconnect/internal/diff"
)

func maskDoc(t *testing.T, m *Masker, doc string) map[string]any {
	t.Helper()
	v, err := diff.Parse([]byte(doc))
	require.NoError(t, err)
	out, ok := m.Mask(v).(map[string]any)
	require.True(t, ok)
	return out
}

func TestMask_SensitiveFields(t *testing.T) {
	m, err := NewMasker(nil)
	require.NoError(t, err)

	out := maskDoc(t, m, `{
		"site_url": "https://example.com",
		"smtp_pass": "hunter2hunter2",
		"external_github_secret": "gh-secret-value",
		"external_google_client_id": "1234.apps.googleusercontent.com",
		"jwt_exp": 3600,
		"password_min_length": 8,
		"hook_custom_access_token_uri": "pg-functions://postgres/public/hook"
	}`)

	assert.Equal(t, "https://example.com", out["site_url"])
	assert.Equal(t, "********", out["smtp_pass"])
	assert.Equal(t, "********", out["external_github_secret"])
	assert.Equal(t, "1234.apps.googleusercontent.com", out["external_google_client_id"])
	assert.Equal(t, "3600", diff.Render(out["jwt_exp"]))
	assert.Equal(t, "8", diff.Render(out["password_min_length"]))
	assert.NotEqual(t, "pg-functions://postgres/public/hook", out["hook_custom_access_token_uri"])
}

func TestMask_SecretValues(t *testing.T) {
	m, err := NewMasker(nil)
	require.NoError(t, err)

	v, err := diff.Parse([]byte(`[{"name":"STRIPE_KEY","value":"sk_live_abcdefghijklmnop"},{"name":"EMPTY","value":""}]`))
	require.NoError(t, err)

	out := m.Mask(v).([]any)
	first := out[0].(map[string]any)
	assert.Equal(t, "STRIPE_KEY", first["name"])
	assert.Equal(t, "********", first["value"])
	assert.Equal(t, "", out[1].(map[string]any)["value"])
}

func TestMask_ValuePatterns(t *testing.T) {
	m, err := NewMasker(nil)
	require.NoError(t, err)

	out := maskDoc(t, m, `{
		"db_uri": "postgresql://admin:pw@db.example.com:5432/app",
		"note": "Bearer abcdefghijklmnopqrstuvwxyz",
		"plain": "hello"
	}`)

	assert.Equal(t, "********", out["db_uri"])
	assert.Equal(t, "Bearer ****", out["note"])
	assert.Equal(t, "hello", out["plain"])
}

func TestMask_DoesNotModifyInput(t *testing.T) {
	m, err := NewMasker(nil)
	require.NoError(t, err)

	v, err := diff.Parse([]byte(`{"smtp_pass":"secret-value","nested":{"api_key":"abcdefghijklmnopqrst"}}`))
	require.NoError(t, err)
	before := diff.Canonical(v)

	_ = m.Mask(v)
	assert.Equal(t, before, diff.Canonical(v))
}

func TestMask_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	m, err := NewMasker(cfg)
	require.NoError(t, err)

	out := maskDoc(t, m, `{"smtp_pass":"secret-value"}`)
	assert.Equal(t, "secret-value", out["smtp_pass"])
}

func TestMask_CustomPatterns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CustomPatterns = map[string]string{"webhook": `(?i)webhook`}
	m, err := NewMasker(cfg)
	require.NoError(t, err)

	out := maskDoc(t, m, `{"slack_webhook":"https://hooks.slack.com/services/T000/B000/XXXX"}`)
	assert.Equal(t, "http...********...XXXX", out["slack_webhook"])

	cfg = DefaultConfig()
	cfg.CustomPatterns = map[string]string{"bad": `([`}
	_, err = NewMasker(cfg)
	assert.Error(t, err)
}

func TestMaskHelpers(t *testing.T) {
	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "eyJ****.****.****", maskToken("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig"))
	assert.Equal(t, "********", maskAPIKey("12345678"))
	assert.Equal(t, "abcd****", maskAPIKey("abcdefghijkl"))
	assert.Equal(t, "****", maskGeneric("abc"))
	assert.Equal(t, "ab****", maskGeneric("abcdef"))
}
