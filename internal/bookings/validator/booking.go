package validator

import (
	"propbook/pkg/logger"
	"propbook/pkg/model"
	"propbook/pkg/validation"
	"time"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validator *validation.Validator
	logger    *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validation.New()
	v.Engine().RegisterStructValidation(validatePayment, model.Payment{})

	log.Debug("Booking validator initialized successfully")

	return &BookingValidator{
		validator: v,
		logger:    log,
	}
}

// validatePayment requires an amount and currency once money has moved.
func validatePayment(sl validator.StructLevel) {
	p := sl.Current().Interface().(model.Payment)
	if p.Status != model.PaymentPaid && p.Status != model.PaymentRefunded {
		return
	}
	if p.Amount <= 0 {
		sl.ReportError(p.Amount, "Amount", "amount", "min", "1")
	}
	if p.Currency == "" {
		sl.ReportError(p.Currency, "Currency", "currency", "required", "")
	}
}

func (v *BookingValidator) Validate(booking *model.ShortletBooking, now time.Time) error {
	if err := v.validator.Struct(booking); err != nil {
		return err
	}
	return v.ValidateDates(booking.StartDate, booking.EndDate, now)
}

// ValidateDates requires start < end and a start no earlier than today.
func (v *BookingValidator) ValidateDates(start, end, now time.Time) error {
	start, end = model.DateOf(start), model.DateOf(end)

	if !start.Before(end) {
		return validation.Field("EndDate", "end_date must be after start_date")
	}
	if start.Before(model.DateOf(now)) {
		return validation.Field("StartDate", "start_date cannot be in the past")
	}
	return nil
}
