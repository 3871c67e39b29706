// Package config загружает Options процесса движка: YAML файл
// (путь в DURABLE_CONFIG), поверх него переменные окружения
// (DB_URL, RABBITMQ_URL, REDIS_URL, DURABLE_*), затем значения по
// умолчанию и проверка.
package config
