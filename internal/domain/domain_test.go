package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Café Luz!", "caf-luz"},
		{"La Parrilla", "la-parrilla"},
		{"  El   Fogón  ", "-el-fogn-"},
		{"Tab\tand\nnewline", "tab-and-newline"},
		{"ÑANDÚ 42", "and-42"},
		{"already-slugged", "already-slugged"},
		{"Über Grill", "ber-grill"},
		{"日本食", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugify_Deterministic(t *testing.T) {
	assert.Equal(t, Slugify("Café Luz!"), Slugify("Café Luz!"))
}

func TestProfileFields_Normalize(t *testing.T) {
	f := ProfileFields{Name: " Ana ", Phone: " +57 300 123 4567 ", DocumentNumber: " 123 "}.Normalize()

	assert.Equal(t, "Ana", f.Name)
	assert.Equal(t, "+57 300 123 4567", f.Phone)
	assert.Equal(t, "123", f.DocumentNumber)
	assert.Equal(t, RoleGuest, f.Role)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
}

func TestNewLocationRef(t *testing.T) {
	a := NewLocationRef("venue-1")
	b := NewLocationRef("venue-1")

	assert.Equal(t, "venue-1", a.Ref)
	assert.NotEmpty(t, a.Key)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestErrorMessages(t *testing.T) {
	dup := &DuplicateError{Field: FieldDocumentNumber}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"duplicate email", &DuplicateError{Field: FieldEmail}, "Ya existe un usuario registrado con este email"},
		{"duplicate document", dup, "Ya existe un usuario registrado con este número de documento"},
		{"profile create", &ProfileCreateError{Cause: errors.New("boom")}, "No fue posible crear el perfil. Intenta de nuevo."},
		{"profile create dup", &ProfileCreateError{Cause: fmt.Errorf("insert: %w", dup)}, dup.UserMessage()},
		{"onboarding", &OnboardingError{Stage: StageVenue}, "No fue posible completar el registro (etapa: venue). Intenta de nuevo."},
		{"not found", ErrProfileNotFound, "Usuario no encontrado"},
		{"pending", ErrAccountPending, "Tu cuenta está pendiente de activación"},
		{"identity", &IdentityError{Cause: errors.New("x"), Message: "Clave API no válida."}, "Clave API no válida."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var um UserMessenger
			assert.True(t, errors.As(tt.err, &um))
			assert.Equal(t, tt.want, um.UserMessage())
		})
	}
}

func TestProfileCreateError_UnwrapsDuplicate(t *testing.T) {
	err := fmt.Errorf("provision: %w", &ProfileCreateError{Cause: &DuplicateError{Field: FieldEmail}})

	var dup *DuplicateError
	assert.True(t, errors.As(err, &dup))
	assert.Equal(t, FieldEmail, dup.Field)

	var pce *ProfileCreateError
	assert.True(t, errors.As(err, &pce))
}

func TestPersonalInfo_FullName(t *testing.T) {
	assert.Equal(t, "Ana Ruiz", PersonalInfo{FirstName: "Ana", LastName: "Ruiz"}.FullName())
	assert.Equal(t, "Ana", PersonalInfo{FirstName: "Ana"}.FullName())
	assert.Equal(t, "Ruiz", PersonalInfo{LastName: "Ruiz"}.FullName())
}
