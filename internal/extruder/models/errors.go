package models

import "errors"

// ============================================================
// Error taxonomy
// ============================================================

var (
	// ErrEmptyDrawing после разворачивания не осталось ни одного отрезка.
	ErrEmptyDrawing = errors.New("empty drawing")
	// ErrUnsupportedEntity сущность пропущена; фатальна только если чертёж опустел.
	ErrUnsupportedEntity = errors.New("unsupported entity")
	// ErrDegenerateSegment отрезок короче допуска, молча отбрасывается индексом.
	ErrDegenerateSegment = errors.New("degenerate segment")
	// ErrNoClosedLoop реконструкция ничего не нашла, дальше работает fallback.
	ErrNoClosedLoop = errors.New("no closed loop")
	ErrInvalidWire  = errors.New("invalid wire")
	ErrInvalidFace  = errors.New("invalid face")
	ErrInvalidDepth = errors.New("invalid depth")
)

var kinds = []struct {
	err     error
	kind    string
	message string
}{
	{ErrInvalidDepth, "InvalidDepth", "enter a non-zero depth"},
	{ErrEmptyDrawing, "EmptyDrawing", "no geometry found"},
	{ErrInvalidWire, "InvalidWire", "drawing too malformed to build a solid"},
	{ErrInvalidFace, "InvalidFace", "drawing too malformed to build a solid"},
	{ErrUnsupportedEntity, "UnsupportedEntity", "drawing contains unsupported entities"},
}

// Kind имя вида PipelineError для цепочки ошибок, "" если это не ошибка пайплайна.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// UserMessage текст для пользователя, различающий три случая из интерфейса.
func UserMessage(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
