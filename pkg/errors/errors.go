package errors

import "errors"

// Общие ошибки, разделяемые адаптерами.
var (
	// ErrCacheMiss возвращается кэшем, если значение по ключу не найдено
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrNotFound возвращается хранилищем, если запись не найдена
	ErrNotFound = errors.New("storage: record not found")
)
