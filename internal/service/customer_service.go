package service

import (
	"context"

	"panaderia/internal/domain"
	"panaderia/internal/repository"
	"panaderia/internal/validate"
)

// CustomerService покупатели: список для кассы и регистрация
type CustomerService struct {
	repo repository.CustomerRepository
}

func NewCustomerService(repo repository.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

// customerSchema единая схема вместо регексов, раскопированных по модальным формам
var customerSchema = validate.Schema{
	"nombre": {
		Rules:   "required,min=2,max=60,alphaunicode",
		Message: "El nombre debe tener entre 2 y 60 letras",
	},
	"apellidoPaterno": {
		Rules:   "required,min=2,max=60,alphaunicode",
		Message: "El apellido paterno debe tener entre 2 y 60 letras",
	},
	"apellidoMaterno": {
		Rules:   "omitempty,min=2,max=60,alphaunicode",
		Message: "El apellido materno debe tener entre 2 y 60 letras",
	},
	"correo": {
		Rules:   "required,email",
		Message: "El correo no es válido",
	},
}

// Create регистрирует покупателя; при нарушении схемы возвращает
// *validate.FieldErrors с сообщением на каждое поле
func (s *CustomerService) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	fields := map[string]string{
		"nombre":          c.FirstName,
		"apellidoPaterno": c.PaternalName,
		"apellidoMaterno": c.MaternalName,
		"correo":          c.Email,
	}
	if err := customerSchema.Evaluate(fields); err != nil {
		return nil, err
	}
	cp := c
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *CustomerService) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.List(ctx)
}
