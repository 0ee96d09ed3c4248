package identity

import (
	"errors"
	"strings"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

const (
	msgUnknown            = "Error desconocido"
	msgGeneric            = "Ha ocurrido un error. Por favor, intenta de nuevo."
	msgBadCredentials     = "Credenciales incorrectas. Verifica tu email y contraseña."
	msgEmailInUse         = "Ya existe una cuenta con este correo electrónico."
	msgWeakPassword       = "La contraseña debe tener al menos 6 caracteres."
	msgInvalidEmail       = "El formato del correo electrónico no es válido."
	msgNetwork            = "Error de conexión. Verifica tu conexión a internet."
	msgTooManyRequests    = "Demasiados intentos fallidos. Intenta de nuevo más tarde."
	msgServiceUnavailable = "El servicio no está disponible temporalmente."
)

var translations = map[string]string{
	// sign-in failures share one message so accounts cannot be probed
	CodeUserNotFound:        msgBadCredentials,
	CodeWrongPassword:       msgBadCredentials,
	CodeInvalidCredential:   msgBadCredentials,
	CodeInvalidEmail:        msgInvalidEmail,
	CodeUserDisabled:        "Esta cuenta ha sido deshabilitada.",
	CodeTooManyRequests:     msgTooManyRequests,
	CodeOperationNotAllowed: "Esta operación no está permitida.",

	CodeEmailAlreadyInUse: msgEmailInUse,
	CodeWeakPassword:      msgWeakPassword,
	CodeInvalidPassword:   "La contraseña no es válida.",
	CodeMissingPassword:   "Debes proporcionar una contraseña.",

	CodeNetworkRequestFailed: msgNetwork,
	CodeTimeout:              "La operación ha expirado. Intenta de nuevo.",
	CodeInternalError:        "Error interno del servidor. Intenta de nuevo más tarde.",
	CodeServiceUnavailable:   msgServiceUnavailable,

	"auth/credential-already-in-use":  "Esta credencial ya está en uso por otra cuenta.",
	"auth/invalid-verification-code": "El código de verificación no es válido.",
	"auth/invalid-verification-id":   "El ID de verificación no es válido.",
	CodeExpiredActionCode:             "El código de acción ha expirado.",
	CodeInvalidActionCode:             "El código de acción no es válido.",

	"auth/invalid-continue-uri": "La URL de continuación no es válida.",
	"auth/missing-continue-uri": "Falta la URL de continuación.",
	CodeMissingEmail:            "Debes proporcionar un correo electrónico.",

	"auth/email-already-verified": "El correo electrónico ya ha sido verificado.",
	"auth/invalid-email-verified": "El correo electrónico no ha sido verificado.",

	"auth/account-exists-with-different-credential": "Ya existe una cuenta con el mismo correo pero diferente método de inicio de sesión.",
	"auth/auth-domain-config-required":              "Error de configuración de autenticación.",
	"auth/cancelled-popup-request":                  "Operación cancelada.",
	"auth/popup-blocked":                            "La ventana emergente fue bloqueada por el navegador.",
	"auth/popup-closed-by-user":                     "La ventana emergente fue cerrada por el usuario.",

	"auth/requires-recent-login": "Esta operación requiere una autenticación reciente. Inicia sesión de nuevo.",
	CodeUserTokenExpired:         "Tu sesión ha expirado. Inicia sesión de nuevo.",
	CodeInvalidUserToken:         "Token de usuario no válido.",
	CodeUserMismatch:             "Las credenciales no corresponden al usuario actual.",

	"auth/app-deleted":                  "La aplicación ha sido eliminada.",
	"auth/app-not-authorized":           "La aplicación no está autorizada.",
	"auth/argument-error":               "Error en los argumentos proporcionados.",
	CodeInvalidAPIKey:                   "Clave API no válida.",
	"auth/invalid-user-import":          "Error al importar usuario.",
	"auth/maximum-user-count-exceeded":  "Se ha excedido el número máximo de usuarios.",
	"auth/missing-android-pkg-name":     "Falta el nombre del paquete Android.",
	"auth/missing-ios-bundle-id":        "Falta el ID del bundle iOS.",
	"auth/unauthorized-domain":          "Dominio no autorizado.",
	"auth/invalid-dynamic-link-domain":  "Dominio de enlace dinámico no válido.",
}

// partialMatches are tried in order against the lowercased error message
var partialMatches = []struct {
	needles []string
	message string
}{
	{[]string{"email-already-in-use", "email already in use"}, msgEmailInUse},
	{[]string{"weak-password", "password should be at least"}, msgWeakPassword},
	{[]string{"user-not-found", "user not found"}, msgBadCredentials},
	{[]string{"wrong-password", "password is invalid"}, msgBadCredentials},
	{[]string{"invalid-email", "badly formatted"}, msgInvalidEmail},
	{[]string{"network", "connection"}, msgNetwork},
	{[]string{"too-many-requests"}, msgTooManyRequests},
}

// Translate returns the Spanish end-user message for err
func Translate(err error) string {
	if err == nil {
		return msgUnknown
	}

	var um domain.UserMessenger
	if errors.As(err, &um) {
		return um.UserMessage()
	}

	code := CodeOf(err)
	if code == "" {
		code = err.Error()
	}
	if msg, ok := translations[code]; ok {
		return msg
	}

	lower := strings.ToLower(err.Error())
	for _, pm := range partialMatches {
		for _, needle := range pm.needles {
			if strings.Contains(lower, needle) {
				return pm.message
			}
		}
	}
	return msgGeneric
}
