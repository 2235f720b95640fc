package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harentsoaR/dermacare-api/internal/app"
	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/services"
)

const (
	samplePatientEmail    = "patient@example.com"
	samplePatientPassword = "patient123"
)

var sampleReports = []services.ReportInput{
	{Disease: "Melanoma", Confidence: 87.5, ImageURL: "https://example.com/image1.jpg"},
	{Disease: "Psoriasis", Confidence: 72.3, ImageURL: "https://example.com/image2.jpg"},
	{Disease: "Eczema", Confidence: 65.8, ImageURL: "https://example.com/image3.jpg"},
}

func seedSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-sample",
		Short: "Create a sample patient with a profile and three reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeEnv, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEnv()
			return seedSample(cmd.Context(), e.svc, cmd.OutOrStdout())
		},
	}
}

func seedSample(ctx context.Context, svc *app.Services, out io.Writer) error {
	s, err := svc.Sessions.Register(ctx, services.RegisterInput{
		Email:    samplePatientEmail,
		Password: samplePatientPassword,
		Name:     "John Doe",
	})
	if apperr.Is(err, apperr.KindConflict) {
		fmt.Fprintf(out, "%s already exists, nothing to do\n", samplePatientEmail)
		return nil
	}
	if err != nil {
		return err
	}
	caller := models.Identity{UserID: s.UserID, Role: s.Role}

	age := 30
	if _, err := svc.Profiles.Upsert(ctx, caller, services.ProfileInput{
		Name:   "John Doe",
		Age:    &age,
		Gender: "male",
	}); err != nil {
		return err
	}

	for _, in := range sampleReports {
		in.BodyPart = "Arm"
		in.Symptoms = "Itching and redness"
		in.Duration = "2 weeks"
		if _, err := svc.Reports.Create(ctx, caller, in); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "sample patient: %s / %s (%d reports)\n", samplePatientEmail, samplePatientPassword, len(sampleReports))
	return nil
}
