package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nyashahama/gallery-paywall-backend/internal/paywall"
)

// respondPaywallErr maps the paywall error taxonomy onto HTTP. Client-caused
// errors carry their message; provider and store failures do not.
func (s *Server) respondPaywallErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, paywall.ErrNotFound),
		errors.Is(err, paywall.ErrPriceMismatch),
		errors.Is(err, paywall.ErrInvalidInput),
		errors.Is(err, paywall.ErrSignatureInvalid):
		respondErr(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, paywall.ErrAlreadyEntitled):
		respondErr(w, http.StatusConflict, err.Error())

	case errors.Is(err, paywall.ErrProvider):
		s.logger.Error("payment provider error", "error", err, "path", r.URL.Path, logField(r))
		respondErr(w, http.StatusBadGateway, "payment provider unavailable, please try again")

	default:
		s.respondInternalErr(w, r, err)
	}
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request: " + err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_unless":
			parts = append(parts, fmt.Sprintf("%s is required", jsonName(fe)))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", jsonName(fe), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", jsonName(fe)))
		}
	}
	return strings.Join(parts, "; ")
}

func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.StructField()
	}
	return strings.ToLower(name[:1]) + name[1:]
}
