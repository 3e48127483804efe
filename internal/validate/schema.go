// Package validate декларативная проверка форм: имя поля → правила →
// сообщение. Одна схема вместо ad hoc регексов в каждой модальной форме.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// Field правила одного поля в синтаксисе validator/v10 и сообщение,
// показываемое при любом их нарушении
type Field struct {
	Rules   string
	Message string
}

// Schema схема формы
type Schema map[string]Field

// FieldErrors типизированная карта поле → сообщение; охватывает все
// нарушенные поля сразу, а не только первое
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return strings.Join(parts, "; ")
}

// Evaluate прогоняет значения формы через схему. nil — форма валидна.
func (s Schema) Evaluate(values map[string]string) error {
	errs := FieldErrors{}
	for name, field := range s {
		if err := v.Var(values[name], field.Rules); err != nil {
			errs[name] = field.Message
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
