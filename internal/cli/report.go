package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/service"
	"github.com/xela07ax/secure-access-dashboard/internal/infra"
)

func reportCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print enrollment, machine tunnel and ZTNA activity reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := infra.WithTraceID(cmd.Context(), uuid.NewString())

			a, err := buildApp(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			o := a.service.Overview(ctx)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeReportJSON(out, o)
			}
			return writeReportText(out, o)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")
	return cmd
}

type reportJSON struct {
	Enrollment    any    `json:"enrollment,omitempty"`
	EnrollmentErr string `json:"enrollment_error,omitempty"`
	Tunnels       any    `json:"tunnels,omitempty"`
	TunnelsErr    string `json:"tunnels_error,omitempty"`
	Activity      any    `json:"activity,omitempty"`
	ActivityErr   string `json:"activity_error,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeReportJSON(w io.Writer, o service.Overview) error {
	r := reportJSON{
		EnrollmentErr: errString(o.EnrollmentErr),
		TunnelsErr:    errString(o.TunnelsErr),
		ActivityErr:   errString(o.ActivityErr),
	}
	if o.Enrollment != nil {
		r.Enrollment = o.Enrollment
	}
	if o.Tunnels != nil {
		r.Tunnels = o.Tunnels
	}
	if o.Activity != nil {
		r.Activity = o.Activity
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeReportText(w io.Writer, o service.Overview) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "== Enrollment ==")
	if o.EnrollmentErr != nil {
		fmt.Fprintf(tw, "error: %v\n", o.EnrollmentErr)
	} else {
		e := o.Enrollment
		fmt.Fprintf(tw, "Total AD users:\t%d\n", e.TotalUsers)
		fmt.Fprintf(tw, "With active devices:\t%d\t(%.2f%%)\n", e.ActiveUsers, e.ActivePercent)
		fmt.Fprintf(tw, "Not enrolled:\t%d\n", len(e.NotEnrolled))
		fmt.Fprintf(tw, "More than 1 device:\t%d\n", len(e.MultiDevice))
		fmt.Fprintln(tw, "\nUsuario\tCorreo\tActive\tExpired\tRevoked")
		for _, u := range e.Enrolled {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", u.Usuario, u.Correo, u.ActiveDevices, u.ExpiredDevices, u.RevokedDevices)
		}
	}

	fmt.Fprintln(tw, "\n== Machine tunnels ==")
	if o.TunnelsErr != nil {
		fmt.Fprintf(tw, "error: %v\n", o.TunnelsErr)
	} else {
		fmt.Fprintf(tw, "Total:\t%d\n", o.Tunnels.Total)
		fmt.Fprintln(tw, "\nDevice\tPublic IP\tAssigned IP\tLogin\tActive\tUsuario")
		for _, r := range o.Tunnels.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.DeviceName, r.PublicIP, r.AssignedIP, r.LoginTime, r.ActiveTime, r.Usuario)
		}
	}

	fmt.Fprintln(tw, "\n== ZTNA private application activity ==")
	if o.ActivityErr != nil {
		fmt.Fprintf(tw, "error: %v\n", o.ActivityErr)
	} else {
		a := o.Activity
		fmt.Fprintf(tw, "Window:\t%s - %s\n", a.Window.Start.Format("2006-01-02 15:04:05"), a.Window.End.Format("15:04:05"))
		fmt.Fprintln(tw, "\nPrivate Resource\tCount")
		for _, c := range a.Counts {
			fmt.Fprintf(tw, "%s\t%d\n", c.Resource, c.Count)
		}
		if len(a.Inactive) > 0 {
			fmt.Fprintln(tw, "\nWithout activity:")
			for _, name := range a.Inactive {
				fmt.Fprintln(tw, name)
			}
		}
	}

	return tw.Flush()
}
