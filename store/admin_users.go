package store

import "time"

// AdminUser can reach the guarded surface: bypass, config mutation, and
// password changes. The first login against an empty table creates the
// account; a workstation has no separate provisioning step.
type AdminUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// sqlite's datetime() default, as stored in created_at columns.
const timeLayout = "2006-01-02 15:04:05"

// GetAdminUser looks up the admin account by username.
func (db *DB) GetAdminUser(username string) (*AdminUser, error) {
	var (
		u         AdminUser
		createdAt string
	)
	err := db.QueryRow(`SELECT id, username, password_hash, created_at FROM admin_users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &u, nil
}

// CreateAdminUser stores a new admin account with a bcrypt password hash.
func (db *DB) CreateAdminUser(username, passwordHash string) (int64, error) {
	res, err := db.Exec(`INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateAdminPassword replaces the stored password hash.
func (db *DB) UpdateAdminPassword(username, passwordHash string) error {
	_, err := db.Exec(`UPDATE admin_users SET password_hash = ? WHERE username = ?`,
		passwordHash, username)
	return err
}

// AdminUserExists reports whether any admin account has been created yet;
// the login handler bootstraps the first one when not.
func (db *DB) AdminUserExists() (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM admin_users`).Scan(&count)
	return count > 0, err
}
