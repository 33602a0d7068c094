package constants

// User-facing texts. The downstream operators read Russian.
const (
	ReasonConversionFailed  = "Не удалось обработать файл: %s"
	ReasonUnparsedResponse  = "Не удалось разобрать ответ распознавания: %s"
	ReasonExtractionFailed  = "Сервис распознавания недоступен: %s"
	ReasonSchemaViolation   = "Ответ распознавания не соответствует формату: %s"
	ReasonUnsupportedFormat = "Неподдерживаемый формат файла: %s"

	// OverageWarning: item, submitted price, catalog price, difference.
	OverageWarning = "«%s»: цена %s превышает прайс %s на %s"

	MsgAccessDenied     = "Недостаточно прав"
	MsgBatchNotFound    = "Пакет не найден"
	MsgOperatorNotFound = "Оператор не найден"

	PromptOperatorID       = "Отправьте числовой ID оператора или @username"
	PromptHandleUnknown    = "Пользователь %s ещё не писал боту. Отправьте числовой ID"
	PromptInvalidID        = "Нужен числовой ID или @username"
	PromptNickname         = "Введите имя оператора (не короче 2 символов)"
	PromptNicknameTooShort = "Имя слишком короткое, минимум 2 символа"
	MsgOperatorRegistered  = "Оператор %s (%d) зарегистрирован"
	MsgOnboardingCancelled = "Добавление оператора отменено"
	MsgNoOnboarding        = "Нет активного добавления оператора"
)

// CancelWords are the inputs that abort the onboarding conversation from any state.
var CancelWords = []string{"/cancel", "отмена", "cancel", "стоп"}
