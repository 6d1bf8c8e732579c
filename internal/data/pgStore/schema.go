package pgStore

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workspaces (
	id        TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	name      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	email        TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	is_active    BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS user_identities (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL REFERENCES users(id),
	provider         TEXT NOT NULL,
	provider_user_id TEXT NOT NULL,
	UNIQUE (provider, provider_user_id)
);

CREATE TABLE IF NOT EXISTS groups (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	external_group_id TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_memberships (
	group_id TEXT NOT NULL REFERENCES groups(id),
	user_id  TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS sources (
	id             TEXT PRIMARY KEY,
	workspace_id   TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	connector_type TEXT NOT NULL,
	name           TEXT NOT NULL,
	config         JSONB NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL REFERENCES sources(id),
	tenant_id     TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	canonical_url TEXT NOT NULL DEFAULT '',
	content_hash  TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_id, external_id)
);

CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	heading_path TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL,
	text_hash    TEXT NOT NULL,
	UNIQUE (document_id, position)
);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
	model    TEXT NOT NULL,
	vector   FLOAT8[] NOT NULL
);

CREATE TABLE IF NOT EXISTS document_acl (
	document_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	principal_type TEXT NOT NULL,
	principal_id   TEXT NOT NULL,
	PRIMARY KEY (document_id, principal_type, principal_id)
);

CREATE TABLE IF NOT EXISTS facts (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_id    TEXT NOT NULL,
	fact_key    TEXT NOT NULL,
	fact_value  TEXT NOT NULL,
	confidence  FLOAT8 NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS facts_tenant_key ON facts (tenant_id, fact_key);
CREATE INDEX IF NOT EXISTS facts_document ON facts (document_id);

CREATE TABLE IF NOT EXISTS source_cursors (
	source_id    TEXT PRIMARY KEY REFERENCES sources(id),
	cursor_value TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_jobs (
	id           TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL,
	job_type     TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	attempt      INTEGER NOT NULL DEFAULT 1,
	trace_id     TEXT NOT NULL DEFAULT '',
	created_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	end_time     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS sync_jobs_active
	ON sync_jobs (source_id) WHERE status IN ('queued', 'running');

CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key  TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	actor_user_id TEXT NOT NULL,
	action        TEXT NOT NULL,
	detail        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	rating     INTEGER NOT NULL,
	comment    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
