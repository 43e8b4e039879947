package properties

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// Input is the property form as submitted by the dashboard wizard
type Input struct {
	Title       string                `json:"title" validate:"required,max=255"`
	Address     string                `json:"address" validate:"required,max=255"`
	City        string                `json:"city" validate:"required,max=100"`
	District    string                `json:"district" validate:"required,district"`
	Price       float64               `json:"price" validate:"gt=0"`
	Area        float64               `json:"area" validate:"gt=0"`
	Rooms       int                   `json:"rooms" validate:"gte=0"`
	Bathrooms   int                   `json:"bathrooms" validate:"gte=0"`
	Type        models.PropertyType   `json:"type" validate:"required,oneof=house apartment commercial land"`
	Status      models.PropertyStatus `json:"status" validate:"omitempty,oneof=available reserved sold"`
	Description string                `json:"description" validate:"min=20"`
	Features    []string              `json:"features" validate:"min=1,dive,required"`
}

// Wizard steps
const (
	StepBasic    = "basic"
	StepDetails  = "details"
	StepImages   = "images"
	StepFeatures = "features"
)

// stepFields lists the struct fields each wizard step owns
var stepFields = map[string][]string{
	StepBasic:    {"Title", "Address", "City", "District", "Type", "Status"},
	StepDetails:  {"Price", "Area", "Rooms", "Bathrooms", "Description"},
	StepImages:   {},
	StepFeatures: {"Features"},
}

var districtPattern = regexp.MustCompile(`^[0-9]{4}$`)

var messages = map[string]string{
	"required":    "is required",
	"district":    "must be a 4-digit postal code",
	"gt":          "must be greater than 0",
	"gte":         "must not be negative",
	"min":         "is too short",
	"max":         "is too long",
	"oneof":       "has an unknown value",
	"residential": "must be at least 1 for houses and apartments",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("district", func(fl validator.FieldLevel) bool {
		return districtPattern.MatchString(fl.Field().String())
	})
	return v
}

// validate checks the whole form
func (s *Service) validate(in *Input) error {
	fields := map[string]string{}
	collect(fields, s.validator.Struct(in))
	residential(fields, in)
	return toError(fields)
}

// ValidateStep checks only the fields of one wizard step
func (s *Service) ValidateStep(step string, in *Input) error {
	names, ok := stepFields[step]
	if !ok {
		return apperr.Invalid("unknown step %q", step)
	}
	if len(names) == 0 {
		return nil
	}

	fields := map[string]string{}
	collect(fields, s.validator.StructPartial(in, names...))
	if step == StepDetails {
		residential(fields, in)
	}
	return toError(fields)
}

func collect(fields map[string]string, err error) {
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["_"] = err.Error()
		return
	}
	for _, fe := range verrs {
		name := fe.Field()
		if i := strings.Index(name, "["); i >= 0 {
			name = name[:i]
		}
		if _, seen := fields[name]; seen {
			continue
		}
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		fields[name] = msg
	}
}

// residential requires rooms and bathrooms for houses and apartments
func residential(fields map[string]string, in *Input) {
	p := models.Property{Type: in.Type}
	if !p.IsResidential() {
		return
	}
	if in.Rooms < 1 {
		if _, seen := fields["rooms"]; !seen {
			fields["rooms"] = messages["residential"]
		}
	}
	if in.Bathrooms < 1 {
		if _, seen := fields["bathrooms"]; !seen {
			fields["bathrooms"] = messages["residential"]
		}
	}
}

func toError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &apperr.ValidationError{Fields: fields}
}
