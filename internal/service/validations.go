package service

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Package for custom validations
var (
	validate *validator.Validate
	once     sync.Once
)

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("not_future_date", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			if value == "" {
				return true
			}
			date, err := time.Parse("2006-01-02", value)
			if err != nil {
				// Format errors belong to the datetime rule
				return true
			}
			// Receipts dated tomorrow or later cannot be counted
			return !date.After(timeNow().UTC().Truncate(24 * time.Hour))
		})
	})
}
