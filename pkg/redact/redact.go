package redact

import "net/url"

// URL скрывает пароль в строке подключения (mongodb://, redis://) перед записью в лог.
// Нераспознаваемая строка заменяется целиком.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}

	return u.Redacted()
}
