package redact

import (
	"net/url"
	"strings"
)

// secretKeys maps a config key to whether its masked value may keep a short
// hint of the original.
var secretKeys = map[string]bool{
	"apikey": true, "api_key": true, "accesstoken": true, "token": true,
	"apisecret": false, "accesssecret": false, "password": false, "secret": false,
	"headers": false,
}

// RedactMap masks secret-looking values of a decoded config in place.
// Long API keys and tokens keep their first and last four characters;
// passwords and secrets are masked fully. URLs keep only scheme and host,
// since webhook URLs carry their credential in the path.
func RedactMap(m map[string]any) {
	for k, v := range m {
		key := strings.ToLower(k)
		if hint, ok := secretKeys[key]; ok {
			m[k] = mask(v, hint)
			continue
		}
		if key == "url" {
			if s, ok := v.(string); ok {
				m[k] = maskURL(s)
			}
			continue
		}
		switch sub := v.(type) {
		case map[string]any:
			RedactMap(sub)
		case []any:
			for _, item := range sub {
				if mm, ok := item.(map[string]any); ok {
					RedactMap(mm)
				}
			}
		}
	}
}

func maskURL(s string) string {
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "****"
	}
	return u.Scheme + "://" + u.Host + "/****"
}

func mask(v any, hint bool) any {
	switch s := v.(type) {
	case string:
		if hint && len(s) > 8 {
			return s[:4] + "****" + s[len(s)-4:]
		}
		if s != "" {
			return "****"
		}
		return s
	case map[string]any:
		out := make(map[string]any, len(s))
		for k := range s {
			out[k] = "****"
		}
		return out
	default:
		return v
	}
}
