package apperr

type Code string

const (
	CodeUnknown                Code = "UNKNOWN"
	CodeValidation             Code = "VALIDATION"
	CodeInvalidKind            Code = "INVALID_KIND"
	CodeForbidden              Code = "FORBIDDEN"
	CodeNotFound               Code = "NOT_FOUND"
	CodeEncryption             Code = "ENCRYPTION"
	CodeDecryption             Code = "DECRYPTION"
	CodeTranslationUnavailable Code = "TRANSLATION_UNAVAILABLE"
	CodeBroadcast              Code = "BROADCAST"
	CodeInternal               Code = "INTERNAL"
)
