package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const defaultAdminEmail = "admin@canteen.local"

// SeedAdminUser creates a first admin account when the users table is empty,
// so a fresh deployment can be administered at all. Idempotent.
func (s *Store) SeedAdminUser(ctx context.Context) error {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	pb := s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`INSERT INTO users (id, created_date, updated_date, created_by, email, password, full_name, role, wallet_balance, profile_complete)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(uuid.New().String()), pb.Add(now), pb.Add(now), pb.Add(defaultAdminEmail),
		pb.Add(defaultAdminEmail), pb.Add(string(hash)), pb.Add("Canteen Admin"),
		pb.Add("admin"), pb.Add(0), pb.Add(true))

	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	log.Printf("WARNING: Default admin user created (%s / changeme), change the password immediately.", defaultAdminEmail)
	return nil
}
