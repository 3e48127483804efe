package validate

import (
	"strings"
	"testing"
)

var formSchema = Schema{
	"nombre": {Rules: "required,min=2", Message: "nombre muy corto"},
	"correo": {Rules: "required,email", Message: "correo inválido"},
}

func TestEvaluateCollectsAllFields(t *testing.T) {
	err := formSchema.Evaluate(map[string]string{"nombre": "x", "correo": "nope"})
	if err == nil {
		t.Fatalf("expected errors")
	}
	errs, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if errs["nombre"] != "nombre muy corto" || errs["correo"] != "correo inválido" {
		t.Fatalf("unexpected map: %v", errs)
	}
	// Error() детерминирован и упоминает оба поля
	if !strings.Contains(err.Error(), "nombre") || !strings.Contains(err.Error(), "correo") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestEvaluateValid(t *testing.T) {
	if err := formSchema.Evaluate(map[string]string{"nombre": "María", "correo": "maria@example.com"}); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
}

func TestEvaluateMissingFieldTreatedAsEmpty(t *testing.T) {
	err := formSchema.Evaluate(map[string]string{"correo": "maria@example.com"})
	errs, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if _, found := errs["nombre"]; !found {
		t.Fatalf("missing field must fail required rule")
	}
}
