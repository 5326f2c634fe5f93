package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных дашборда в Redis
	RedisNamespace = "sse-dashboard"
)

// Ключи кэша ответов API
const (
	CacheKeyIdentities       = "identities"
	CacheKeyUserSummaries    = "user_summaries"
	CacheKeyVPNConnections   = "vpn_connections"
	CacheKeyPrivateResources = "private_resources"
)

// CacheKey добавляет к ключу пространство имен проекта.
func CacheKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", RedisNamespace, key)
}

// CachePattern — шаблон SCAN для всех ключей кэша.
func CachePattern() string {
	return RedisNamespace + ":cache:*"
}
