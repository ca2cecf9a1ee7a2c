package licensing

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

// RegisterCompanyInput is the payload of RegisterCompany.
type RegisterCompanyInput struct {
	Name         string             `json:"name" validate:"required"`
	CompanyID    string             `json:"companyId" validate:"required"`
	Email        string             `json:"email" validate:"required,email"`
	Phone        string             `json:"phone" validate:"required"`
	Address      string             `json:"address" validate:"required"`
	DeployKey    string             `json:"deployKey" validate:"required"`
	Fingerprints []FingerprintInput `json:"fingerprints" validate:"required,min=1"`
}

// UpdateCompanyInput is the payload of UpdateCompany. Only Set fields are applied.
type UpdateCompanyInput struct {
	Name         Optional[string]            `json:"name"`
	CompanyID    Optional[string]            `json:"companyId"`
	Email        Optional[string]            `json:"email"`
	Phone        Optional[string]            `json:"phone"`
	Address      Optional[string]            `json:"address"`
	DeployKey    Optional[string]            `json:"deployKey"`
	Active       Optional[bool]              `json:"active"`
	Fingerprints Optional[[]FingerprintEdit] `json:"fingerprints"`
}

// VerifyInput is the payload sent by deployed software.
type VerifyInput struct {
	CompanyID   string `json:"companyId" validate:"required"`
	DeployKey   string `json:"deployKey" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct reports the first failing field as a ValidationError.
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return invalid(fe.Field(), reasonFor(fe.Tag()))
	}
	return invalid("body", err.Error())
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must not be empty"
	default:
		return "is invalid"
	}
}

func normalizeEmail(email string) string {
	// Casers are stateful, so one per call.
	return cases.Fold().String(strings.TrimSpace(email))
}

func (in *RegisterCompanyInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.DeployKey = strings.TrimSpace(in.DeployKey)
}

func (in UpdateCompanyInput) empty() bool {
	return !in.Name.IsSet() && !in.CompanyID.IsSet() && !in.Email.IsSet() && !in.Phone.IsSet() &&
		!in.Address.IsSet() && !in.DeployKey.IsSet() && !in.Active.IsSet() && !in.Fingerprints.IsSet()
}

// check validates the supplied fields before any storage access.
func (in UpdateCompanyInput) check() error {
	if in.empty() {
		return invalid("body", "no fields to update")
	}
	if in.Active.IsNull() {
		return invalid("active", "must be true or false")
	}
	if in.Fingerprints.IsNull() {
		return invalid("fingerprints", "must be a list of devices")
	}
	texts := []struct {
		field string
		value Optional[string]
	}{
		{"name", in.Name},
		{"companyId", in.CompanyID},
		{"email", in.Email},
		{"phone", in.Phone},
		{"address", in.Address},
		{"deployKey", in.DeployKey},
	}
	for _, t := range texts {
		if v, ok := t.value.Get(); ok && strings.TrimSpace(v) == "" {
			return invalid(t.field, "must not be empty")
		}
	}
	if email, ok := in.Email.Get(); ok {
		if err := validate.Var(strings.TrimSpace(email), "email"); err != nil {
			return invalid("email", reasonFor("email"))
		}
	}
	return nil
}

// apply writes the scalar fields onto c and returns the names of the fields written.
func (in UpdateCompanyInput) apply(c *Company) []string {
	var changed []string
	set := func(field string, o Optional[string], dst *string, norm func(string) string) {
		if v, ok := o.Get(); ok {
			*dst = norm(v)
			changed = append(changed, field)
		}
	}
	set("name", in.Name, &c.Name, strings.TrimSpace)
	set("companyId", in.CompanyID, &c.CompanyID, strings.TrimSpace)
	set("email", in.Email, &c.Email, normalizeEmail)
	set("phone", in.Phone, &c.Phone, strings.TrimSpace)
	set("address", in.Address, &c.Address, strings.TrimSpace)
	set("deployKey", in.DeployKey, &c.DeployKey, strings.TrimSpace)
	if v, ok := in.Active.Get(); ok {
		c.Active = v
		changed = append(changed, "active")
	}
	return changed
}
