package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/garyjia/visaflow/internal/application/checklist"
	"github.com/garyjia/visaflow/internal/application/service"
	"github.com/garyjia/visaflow/internal/domain/entity"
)

type session struct {
	service service.ApplicationService
	out     io.Writer
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, s *session, args []string) error
}

var commands = []command{
	{"show", "print the application record", runShow},
	{"set", "set form fields: key=value ...", runSet},
	{"upload", "attach files: <passport|resume|employment|supporting> <file> ...", runUpload},
	{"remove", "remove a document: <id>", runRemove},
	{"checklist", "print the document checklist", runChecklist},
	{"submit", "submit the draft for review", runSubmit},
	{"validate", "run validation on the submitted record", runValidate},
	{"bypass", "accept the findings reported for a field: <field>", runBypass},
	{"remaining", "list findings that still block proceeding", runRemaining},
	{"proceed", "move the record on to final review", runProceed},
	{"approve", "approve the record", runApprove},
	{"generate", "generate the application document", runGenerate},
	{"reset", "discard the record and start a new draft", runReset},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func commandUsage() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.usage)
	}
	_ = tw.Flush()
	return b.String()
}

func runShow(ctx context.Context, s *session, args []string) error {
	if err := s.printJSON(s.service.Current()); err != nil {
		return err
	}
	triggers := s.service.PermittedTriggers(ctx)
	names := make([]string, 0, len(triggers))
	for _, t := range triggers {
		names = append(names, t.String())
	}
	fmt.Fprintf(s.out, "available: %s\n", strings.Join(names, ", "))
	return nil
}

func runSet(ctx context.Context, s *session, args []string) error {
	patch, err := parseAssignments(args)
	if err != nil {
		return err
	}
	rec, err := s.service.UpdateRecord(ctx, patch)
	if err != nil {
		return err
	}
	return s.printJSON(rec)
}

func runUpload(ctx context.Context, s *session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: upload <type> <file> ...")
	}
	docType := entity.DocumentType(args[0])

	uploads := make([]checklist.Upload, 0, len(args)-1)
	for _, path := range args[1:] {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		uploads = append(uploads, checklist.Upload{FileName: filepath.Base(path), SizeBytes: info.Size()})
	}

	if _, err := s.service.UploadDocuments(ctx, docType, uploads); err != nil {
		return err
	}
	return runChecklist(ctx, s, nil)
}

func runRemove(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <id>")
	}
	if _, err := s.service.RemoveDocument(ctx, args[0]); err != nil {
		return err
	}
	return runChecklist(ctx, s, nil)
}

func runChecklist(ctx context.Context, s *session, args []string) error {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tREQUIRED\tCOUNT\tLATEST")
	for _, e := range s.service.Checklist() {
		required := ""
		if e.Required {
			required = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Type, required, e.Count, e.Latest)
	}
	return tw.Flush()
}

func runSubmit(ctx context.Context, s *session, args []string) error {
	receipt, err := s.service.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "submitted: reference %s at %s\n", receipt.ReferenceNumber, receipt.SubmittedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runValidate(ctx context.Context, s *session, args []string) error {
	outcome, err := s.service.Validate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "status: %s\n", outcome.Status)
	printFindings(s.out, outcome.Result.Errors, outcome.Record.ValidationBypass)
	return nil
}

func runBypass(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bypass <field>")
	}
	rec, err := s.service.Bypass(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "bypassed: %s\n", strings.Join(rec.ValidationBypass, ", "))
	return runRemaining(ctx, s, nil)
}

func runRemaining(ctx context.Context, s *session, args []string) error {
	remaining := s.service.Remaining()
	if len(remaining) == 0 {
		fmt.Fprintln(s.out, "nothing blocking")
		return nil
	}
	printFindings(s.out, remaining, nil)
	return nil
}

func runProceed(ctx context.Context, s *session, args []string) error {
	rec, err := s.service.Proceed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "status: %s\n", rec.Status)
	return nil
}

func runApprove(ctx context.Context, s *session, args []string) error {
	rec, err := s.service.Approve(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "status: %s\n", rec.Status)
	return nil
}

func runGenerate(ctx context.Context, s *session, args []string) error {
	doc, err := s.service.Generate(ctx)
	if err != nil {
		return err
	}
	return s.printJSON(doc)
}

func runReset(ctx context.Context, s *session, args []string) error {
	rec, err := s.service.StartNew(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "new %s application started\n", rec.VisaType)
	return nil
}

func (s *session) printJSON(v interface{}) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printFindings(w io.Writer, findings []entity.Finding, bypassed []string) {
	skip := make(map[string]bool, len(bypassed))
	for _, f := range bypassed {
		skip[f] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range findings {
		note := ""
		if skip[f.Field] {
			note = "(bypassed)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Severity, f.Field, f.Message, note)
	}
	_ = tw.Flush()
}

// parseAssignments turns key=value arguments into a patch. Address keys use
// an "address." prefix.
func parseAssignments(args []string) (entity.ApplicationPatch, error) {
	var patch entity.ApplicationPatch
	if len(args) == 0 {
		return patch, fmt.Errorf("usage: set key=value ...")
	}

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return patch, fmt.Errorf("expected key=value, got %q", arg)
		}
		v := value

		if field, isAddress := strings.CutPrefix(key, "address."); isAddress {
			if patch.Address == nil {
				patch.Address = &entity.AddressPatch{}
			}
			switch field {
			case "street":
				patch.Address.Street = &v
			case "city":
				patch.Address.City = &v
			case "state":
				patch.Address.State = &v
			case "postcode":
				patch.Address.Postcode = &v
			case "country":
				patch.Address.Country = &v
			default:
				return patch, fmt.Errorf("unknown address field %q", field)
			}
			continue
		}

		switch key {
		case "visaType":
			patch.VisaType = &v
		case "fullName":
			patch.FullName = &v
		case "dateOfBirth":
			patch.DateOfBirth = &v
		case "nationality":
			patch.Nationality = &v
		case "passportNumber":
			patch.PassportNumber = &v
		case "email":
			patch.Email = &v
		case "phone":
			patch.Phone = &v
		case "employerName":
			patch.EmployerName = &v
		case "jobTitle":
			patch.JobTitle = &v
		case "employmentStartDate":
			patch.EmploymentStartDate = &v
		case "salary":
			amount, err := decimal.NewFromString(v)
			if err != nil {
				return patch, fmt.Errorf("invalid salary %q: %w", v, err)
			}
			patch.Salary = &amount
		default:
			return patch, fmt.Errorf("unknown field %q", key)
		}
	}
	return patch, nil
}
