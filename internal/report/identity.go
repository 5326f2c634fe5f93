// Package report превращает ответы Secure Access API в таблицы и ряды дашборда.
// Функции пакета чистые: время и часовой пояс передаются явно.
package report

import (
	"regexp"
	"strings"

	"github.com/xela07ax/secure-access-dashboard/internal/domain"
)

// Идентификатор сотрудника: буква и семь цифр (A1234567)
var identifierRe = regexp.MustCompile(`[A-Za-z]\d{7}`)

// SplitLabel разбирает метку "Имя Фамилия (mail@corp)" на имя и почту.
func SplitLabel(label string) (name, mail string) {
	name, rest, found := strings.Cut(label, " (")
	if !found {
		return label, ""
	}
	mail, _, _ = strings.Cut(rest, " (")
	return name, strings.ReplaceAll(mail, ")", "")
}

// ExtractIdentifier возвращает первый идентификатор сотрудника в s или "".
func ExtractIdentifier(s string) string {
	return identifierRe.FindString(s)
}

// IdentifierMap сопоставляет идентификатор из почты с именем пользователя.
// При повторе идентификатора побеждает последний, как в исходной выгрузке.
func IdentifierMap(users []domain.EnrolledUser) map[string]string {
	m := make(map[string]string, len(users))
	for _, u := range users {
		if id := ExtractIdentifier(u.Correo); id != "" {
			m[id] = u.Usuario
		}
	}
	return m
}
