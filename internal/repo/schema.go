package repo

// schema — DDL хранилища. Все выражения идемпотентны.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS durable_workflows (
		id                 TEXT PRIMARY KEY,
		definition_id      TEXT NOT NULL,
		version            INTEGER NOT NULL,
		tenant_id          TEXT NOT NULL DEFAULT '',
		description        TEXT,
		reference          TEXT,
		user_id            TEXT,
		status             TEXT NOT NULL,
		data               JSONB,
		execution_pointers JSONB NOT NULL,
		next_execution     BIGINT,
		create_time        TIMESTAMPTZ NOT NULL,
		complete_time      TIMESTAMPTZ,
		revision           BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS durable_workflows_runnable_idx
		ON durable_workflows (next_execution) WHERE status = 'RUNNABLE'`,
	`CREATE INDEX IF NOT EXISTS durable_workflows_create_time_idx
		ON durable_workflows (create_time)`,
	`CREATE INDEX IF NOT EXISTS durable_workflows_user_idx
		ON durable_workflows (user_id) WHERE user_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS durable_subscriptions (
		id              TEXT PRIMARY KEY,
		workflow_id     TEXT NOT NULL,
		step_id         INTEGER NOT NULL,
		pointer_id      TEXT NOT NULL,
		event_name      TEXT NOT NULL,
		event_key       TEXT NOT NULL,
		subscribe_as_of TIMESTAMPTZ NOT NULL,
		terminated      BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS durable_subscriptions_event_idx
		ON durable_subscriptions (event_name, event_key) WHERE NOT terminated`,

	`CREATE TABLE IF NOT EXISTS durable_events (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		key          TEXT NOT NULL,
		data         JSONB,
		time         TIMESTAMPTZ NOT NULL,
		is_processed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS durable_events_runnable_idx
		ON durable_events (time) WHERE NOT is_processed`,
	`CREATE INDEX IF NOT EXISTS durable_events_name_key_idx
		ON durable_events (name, key, time)`,

	`CREATE TABLE IF NOT EXISTS durable_execution_errors (
		id          BIGSERIAL PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		pointer_id  TEXT NOT NULL,
		time        TIMESTAMPTZ NOT NULL,
		message     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS durable_execution_errors_workflow_idx
		ON durable_execution_errors (workflow_id, id)`,
}
