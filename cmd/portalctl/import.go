package main

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/services"
)

var doctorColumns = []string{"fam_dr_name", "fam_dr_edu", "fam_dr_hospital", "fam_dr_hospital_location"}

func importDoctorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-doctors <file.csv>",
		Short: "Create doctor accounts and directory entries from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			e, closeEnv, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEnv()

			imp := &doctorImporter{
				sessions: e.svc.Sessions,
				doctors:  e.svc.Doctors,
				users:    e.store,
				out:      cmd.OutOrStdout(),
			}
			n, err := imp.Import(cmd.Context(), f)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d doctors\n", n)
			return err
		},
	}
}

type doctorRow struct {
	Name, Education, Hospital, Location string
}

// readDoctorRows parses the CSV, locating columns by header name.
func readDoctorRows(r io.Reader) ([]doctorRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range doctorColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var rows []doctorRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			if i := idx[col]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		row := doctorRow{
			Name:      get("fam_dr_name"),
			Education: get("fam_dr_edu"),
			Hospital:  get("fam_dr_hospital"),
			Location:  get("fam_dr_hospital_location"),
		}
		if row.Name == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func doctorEmail(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "")) + "@hospital.com"
}

func generatePassword() (string, error) {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type userLookup interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

type doctorImporter struct {
	sessions *services.SessionManager
	doctors  *services.DoctorService
	users    userLookup
	out      io.Writer
}

// Import registers one doctor account per row and writes its directory
// entry. Rows whose account already exists only refresh the directory.
// A bad row is reported and skipped.
func (imp *doctorImporter) Import(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readDoctorRows(r)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, row := range rows {
		email := doctorEmail(row.Name)
		userID, err := imp.account(ctx, row, email)
		if err != nil {
			fmt.Fprintf(imp.out, "skip %s: %v\n", row.Name, err)
			continue
		}

		err = imp.doctors.Upsert(ctx, &models.Doctor{
			ID:          userID,
			Name:        row.Name,
			Education:   row.Education,
			Hospital:    row.Hospital,
			Location:    row.Location,
			IsAvailable: true,
			Rating:      4.5,
		})
		if err != nil {
			return imported, fmt.Errorf("%s: %w", row.Name, err)
		}
		imported++
	}
	return imported, nil
}

func (imp *doctorImporter) account(ctx context.Context, row doctorRow, email string) (string, error) {
	password, err := generatePassword()
	if err != nil {
		return "", err
	}
	s, err := imp.sessions.Register(ctx, services.RegisterInput{
		Email:    email,
		Password: password,
		Role:     string(models.RoleDoctor),
		Name:     row.Name,
	})
	if err == nil {
		fmt.Fprintf(imp.out, "%s\t%s\t%s\n", row.Name, email, password)
		return s.UserID, nil
	}
	if !apperr.Is(err, apperr.KindConflict) {
		return "", err
	}

	u, lookupErr := imp.users.UserByEmail(ctx, email)
	if lookupErr != nil {
		return "", lookupErr
	}
	if u.Role != models.RoleDoctor {
		return "", fmt.Errorf("%s is registered as %s", email, u.Role)
	}
	fmt.Fprintf(imp.out, "%s\t%s\t(existing account)\n", row.Name, email)
	return u.ID, nil
}
