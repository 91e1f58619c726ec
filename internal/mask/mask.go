// Package mask redacts sensitive values from configuration snapshots before
// they are persisted.
package mask

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

type Config struct {
	Enabled             bool
	AllowPartialMasking bool
	LogMasking          bool
	// SkipFields are field names that are never masked, matched case-insensitively.
	SkipFields []string
	// CustomPatterns are extra field name patterns keyed by a descriptive name.
	CustomPatterns map[string]string

	customRegexps map[string]*regexp.Regexp
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:             true,
		AllowPartialMasking: true,
		SkipFields: []string{
			"jwt_exp",
			"refresh_token_rotation_enabled",
			"security_refresh_token_reuse_interval",
			"password_min_length",
			"password_required_characters",
			"password_hibp_enabled",
			"external_email_enabled",
			"mailer_autoconfirm",
		},
		customRegexps: make(map[string]*regexp.Regexp),
	}
}

type patternRegistry struct {
	fieldPatterns map[string]*regexp.Regexp
	valuePatterns map[string]*regexp.Regexp
}

var (
	registry     *patternRegistry
	registryOnce sync.Once
)

func initPatternRegistry() {
	registryOnce.Do(func() {
		registry = &patternRegistry{
			fieldPatterns: make(map[string]*regexp.Regexp),
			valuePatterns: make(map[string]*regexp.Regexp),
		}

		fieldPatterns := map[string]string{
			"api_key":    `(?i)(api[_-]?key|apikey|service[_-]?key)`,
			"token":      `(?i)(auth[_-]?token|access[_-]?token|bearer|token)`,
			"password":   `(?i)(password|passwd|pwd)`,
			"secret":     `(?i)(secret|private[_-]?key)`,
			"credential": `(?i)(credential|cred)`,
			"smtp":       `(?i)(smtp[_-]?pass|smtp[_-]?user)`,
			"dsn":        `(?i)(dsn|connection[_-]?string|database[_-]?url)`,
		}
		for name, pattern := range fieldPatterns {
			registry.fieldPatterns[name] = regexp.MustCompile(pattern)
		}

		valuePatterns := map[string]string{
			"jwt_token":      `^eyJ[A-Za-z0-9-_=]+\.[A-Za-z0-9-_=]+\.?[A-Za-z0-9-_.+/=]*$`,
			"bearer_token":   `^Bearer\s+[A-Za-z0-9\-\._~\+\/]+=*$`,
			"postgres_url":   `^postgres(ql)?://[^:]+:[^@]+@`,
			"supabase_token": `^sbp_[A-Za-z0-9]{20,}$`,
		}
		for name, pattern := range valuePatterns {
			registry.valuePatterns[name] = regexp.MustCompile(pattern)
		}
	})
}

// Masker walks decoded JSON values and replaces sensitive strings.
type Masker struct {
	config *Config
	skip   map[string]struct{}
}

func NewMasker(config *Config) (*Masker, error) {
	if config == nil {
		config = DefaultConfig()
	}

	initPatternRegistry()

	config.customRegexps = make(map[string]*regexp.Regexp)
	for name, pattern := range config.CustomPatterns {
		regex, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid custom pattern %s: %w", name, err)
		}
		config.customRegexps[name] = regex
	}

	skip := make(map[string]struct{}, len(config.SkipFields))
	for _, f := range config.SkipFields {
		skip[strings.ToLower(f)] = struct{}{}
	}

	return &Masker{config: config, skip: skip}, nil
}

// Mask returns a masked copy of v. v itself is never modified.
func (m *Masker) Mask(v any) any {
	if !m.config.Enabled {
		return v
	}
	return m.maskValue(v, "root", "")
}

func (m *Masker) maskValue(v any, path, field string) any {
	switch tv := v.(type) {
	case map[string]any:
		masked := make(map[string]any, len(tv))
		for key, value := range tv {
			masked[key] = m.maskValue(value, path+"."+key, key)
		}
		// Secrets are reported as name/value pairs, so the value field is
		// sensitive even though its name is not.
		if _, hasName := tv["name"]; hasName {
			if s, ok := tv["value"].(string); ok {
				masked["value"] = m.maskString("secret", s, path+".value")
			}
		}
		return masked

	case []any:
		masked := make([]any, len(tv))
		for i, item := range tv {
			masked[i] = m.maskValue(item, fmt.Sprintf("%s[%d]", path, i), field)
		}
		return masked

	case string:
		if field != "" && m.isSensitiveField(field) {
			return m.maskString(fieldType(field), tv, path)
		}
		if dataType, ok := m.detectSensitiveValue(tv); ok {
			return m.maskString(dataType, tv, path)
		}
		return tv

	default:
		return v
	}
}

func (m *Masker) maskString(dataType, value, path string) string {
	if value == "" {
		return value
	}
	masked := m.applyMaskingStrategy(dataType, value)
	if m.config.LogMasking {
		slog.Debug("Masked sensitive data", "path", path, "type", dataType)
	}
	return masked
}

func (m *Masker) isSensitiveField(fieldName string) bool {
	fieldLower := strings.ToLower(fieldName)
	if _, ok := m.skip[fieldLower]; ok {
		return false
	}

	for _, pattern := range registry.fieldPatterns {
		if pattern.MatchString(fieldLower) {
			return true
		}
	}
	for _, pattern := range m.config.customRegexps {
		if pattern.MatchString(fieldName) {
			return true
		}
	}
	return false
}

func (m *Masker) detectSensitiveValue(value string) (string, bool) {
	if len(value) < 3 {
		return "", false
	}
	for dataType, pattern := range registry.valuePatterns {
		if pattern.MatchString(value) {
			return dataType, true
		}
	}
	return "", false
}

func fieldType(fieldName string) string {
	fieldLower := strings.ToLower(fieldName)

	switch {
	case strings.Contains(fieldLower, "token") || strings.Contains(fieldLower, "jwt"):
		return "token"
	case strings.Contains(fieldLower, "key"):
		return "api_key"
	case strings.Contains(fieldLower, "pass"):
		return "password"
	case strings.Contains(fieldLower, "secret"):
		return "secret"
	default:
		return "sensitive_data"
	}
}

func (m *Masker) applyMaskingStrategy(dataType, value string) string {
	if !m.config.AllowPartialMasking {
		return "********"
	}

	switch dataType {
	case "jwt_token", "bearer_token", "token", "supabase_token":
		return maskToken(value)
	case "api_key":
		return maskAPIKey(value)
	case "password", "secret", "postgres_url":
		return "********"
	default:
		return maskGeneric(value)
	}
}

func maskToken(token string) string {
	if len(token) <= 20 {
		return "****"
	}

	if strings.HasPrefix(token, "Bearer ") {
		return "Bearer ****"
	}

	if strings.HasPrefix(token, "eyJ") {
		if parts := strings.Split(token, "."); len(parts) == 3 {
			return "eyJ****.****.****"
		}
	}

	return token[:4] + "****" + token[len(token)-4:]
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "********"
	}

	prefixLen := 4
	suffixLen := 4

	if len(key) <= prefixLen+suffixLen+4 {
		return key[:prefixLen] + "****"
	}

	return key[:prefixLen] + "..." + strings.Repeat("*", 8) + "..." + key[len(key)-suffixLen:]
}

func maskGeneric(value string) string {
	length := len(value)

	switch {
	case length <= 4:
		return "****"
	case length <= 8:
		return value[:2] + strings.Repeat("*", length-2)
	case length <= 16:
		return value[:3] + strings.Repeat("*", length-6) + value[length-3:]
	default:
		return value[:4] + "..." + strings.Repeat("*", 8) + "..." + value[length-4:]
	}
}
