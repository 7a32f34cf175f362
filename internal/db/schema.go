package db

import "fmt"

// SchemaSQL returns the schema definition with a chunk vector index of the
// given dimension.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(schemaTemplate, dimension)
}

const schemaTemplate = `
    -- ==========================================================================
    -- CHUNK TABLE (embedded document fragments)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS file_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS upload_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS position ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS metadata ON chunk TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created ON chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_file ON chunk FIELDS file_id;
    DEFINE INDEX IF NOT EXISTS chunk_upload ON chunk FIELDS upload_id;
    DEFINE INDEX IF NOT EXISTS chunk_embedding ON chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;

    -- ==========================================================================
    -- PLAN TABLE (generated workout programs)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS plan SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job_id ON plan TYPE string;
    DEFINE FIELD IF NOT EXISTS program ON plan TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS fallback ON plan TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS file_ids ON plan TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS created ON plan TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS plan_job ON plan FIELDS job_id UNIQUE;
`
