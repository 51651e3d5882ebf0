package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс для работы с системой кэширования
// Реализация может использовать Redis, Memcached или любую другую систему кэширования
type CachePort interface {
	// Get получает значение из кэша по ключу
	// Возвращает ErrCacheMiss, если значение не найдено
	Get(ctx context.Context, key string) ([]byte, error)

	// GetWithSite получает значение из кэша по ключу с учетом ID сайта
	// Помогает обеспечить изоляцию данных в мультисайтовой системе
	GetWithSite(ctx context.Context, key string, siteID string) ([]byte, error)

	// Set сохраняет значение в кэше с указанным сроком действия
	// Если expiration равно 0, срок действия не устанавливается
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// SetWithSite сохраняет значение в кэше с учетом ID сайта
	SetWithSite(ctx context.Context, key string, value []byte, siteID string, expiration time.Duration) error

	// Delete удаляет значение из кэша по ключу
	Delete(ctx context.Context, key string) error

	// DeleteWithSite удаляет значение из кэша по ключу с учетом ID сайта
	DeleteWithSite(ctx context.Context, key string, siteID string) error

	// DeleteByPattern удаляет все значения, соответствующие шаблону
	// Например, "snapshot:*" удалит все ключи, начинающиеся с "snapshot:"
	DeleteByPattern(ctx context.Context, pattern string) error

	// Close закрывает соединение с системой кэширования
	Close() error
}
