package config

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("probability", validateProbability)
	_ = v.RegisterValidation("duration", validateDuration)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateProbability(fl validator.FieldLevel) bool {
	p := fl.Field().Float()
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var problems []string
	if err := validate.Struct(s); err != nil {
		fieldErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		for _, fe := range fieldErrors {
			problems = append(problems, fmt.Sprintf("%s: %s", fe.Field(), describe(fe)))
		}
	}

	mass := 0.0
	for _, w := range []float64{
		s.ChangeTargetProbability, s.ChangeSourceProbability, s.ChangeInputProbability,
		s.RemoveEdgeProbability, s.AddEdgeProbability, s.AddStateProbability,
		s.AddAcceptStateProbability, s.RemoveAcceptStateProbability, s.MergeStatesProbability,
	} {
		mass += w
	}
	if mass <= 0 {
		problems = append(problems, "mutation operator probabilities: sum must be > 0")
	}
	if s.EliteCount() >= s.MaxPopulation {
		problems = append(problems, "elite_carry_over: leaves no room for offspring")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "probability":
		return "must be within [0, 1]"
	case "duration":
		return "must be a non-negative duration such as 30s"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
