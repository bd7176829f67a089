package persistence

// Registry statement names.
const (
	StmtCreateParish       = "create_parish"
	StmtFindParishByPublic = "find_parish_by_public_id"
	StmtUpdateParishCipher = "update_parish_cipher"
	StmtListParishes       = "list_parishes"
)

var Queries = map[string]string{
	StmtCreateParish: `
		INSERT INTO parishes (public_id, display_name, encrypted_connection, key_version)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,

	StmtFindParishByPublic: `
		SELECT id, public_id, display_name, encrypted_connection, key_version, created_at
		FROM parishes
		WHERE public_id = $1`,

	// ciphertext and key version always move together
	StmtUpdateParishCipher: `
		UPDATE parishes
		SET encrypted_connection = $1, key_version = $2
		WHERE id = $3`,

	StmtListParishes: `
		SELECT id, public_id, display_name, encrypted_connection, key_version, created_at
		FROM parishes
		ORDER BY id`,
}
