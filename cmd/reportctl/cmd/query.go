package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/playreport/api/pkg/apierror"
	"github.com/playreport/api/pkg/reportquery"
)

// offlineStore stands in for the database when a command only composes.
type offlineStore struct{}

func (offlineStore) Run(context.Context, *reportquery.ComposedQuery) (*reportquery.Result, error) {
	return nil, errors.New("no database connection")
}

var (
	templatesIdentity identityFlags

	composeIdentity identityFlags
	composeRequest  requestFlags

	explainIdentity identityFlags
	explainRequest  requestFlags

	runIdentity identityFlags
	runRequest  requestFlags
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"template", "tpl"},
	Short:   "List report templates visible to a caller",
	RunE:    runTemplates,
}

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Print the parameterized SQL for a request without running it",
	RunE:  runCompose,
}

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show the database plan for a request",
	RunE:  runExplain,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a report request and print one page",
	RunE:  runReport,
}

func init() {
	templatesIdentity.register(templatesCmd)

	composeIdentity.register(composeCmd)
	composeRequest.register(composeCmd)

	explainIdentity.register(explainCmd)
	explainRequest.register(explainCmd)

	runIdentity.register(runCmd)
	runRequest.register(runCmd)
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	identity, err := templatesIdentity.resolve(e.cfg)
	if err != nil {
		return err
	}
	svc, err := e.reportService(false)
	if err != nil {
		return err
	}

	list := svc.ListTemplates(identity)
	if printStructured(list) {
		return nil
	}

	t := newTable("ID", "NAME", "CATEGORY", "COLUMNS", "FILTERS")
	for _, s := range list {
		t.AddRow(s.ID, s.Name, orDash(s.Category), fmt.Sprint(len(s.Columns)), strings.Join(s.FilterFields, ","))
	}
	t.Flush()
	return nil
}

type composeOutput struct {
	TemplateID string `json:"template_id" yaml:"template_id"`
	Data       string `json:"data" yaml:"data"`
	Count      string `json:"count" yaml:"count"`
	Args       []any  `json:"args" yaml:"args"`
}

func runCompose(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	identity, err := composeIdentity.resolve(e.cfg)
	if err != nil {
		return err
	}
	req, err := composeRequest.build()
	if err != nil {
		return err
	}
	svc, err := e.reportService(false)
	if err != nil {
		return err
	}

	q, err := svc.Compose(identity, req)
	if err != nil {
		return describe(err)
	}

	out := composeOutput{TemplateID: q.TemplateID, Data: q.DataStatement, Count: q.CountStatement, Args: q.Args()}
	if printStructured(out) {
		return nil
	}

	fmt.Printf("-- data\n%s\n\n-- count\n%s\n\n-- args\n", out.Data, out.Count)
	for i, arg := range out.Args {
		fmt.Printf("$%d = %v\n", i+1, arg)
	}
	return nil
}

func runExplain(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	identity, err := explainIdentity.resolve(e.cfg)
	if err != nil {
		return err
	}
	req, err := explainRequest.build()
	if err != nil {
		return err
	}
	svc, err := e.reportService(true)
	if err != nil {
		return err
	}

	q, err := svc.Compose(identity, req)
	if err != nil {
		return describe(err)
	}
	plan, err := e.store.Explain(cmd.Context(), q)
	if err != nil {
		return err
	}

	if printStructured(plan) {
		return nil
	}
	for _, line := range plan {
		fmt.Println(line)
	}
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	identity, err := runIdentity.resolve(e.cfg)
	if err != nil {
		return err
	}
	req, err := runRequest.build()
	if err != nil {
		return err
	}
	svc, err := e.reportService(true)
	if err != nil {
		return err
	}

	res, err := svc.Execute(cmd.Context(), identity, req)
	if err != nil {
		return describe(err)
	}

	if printStructured(res) {
		return nil
	}

	t := newTable(res.ColumnNames()...)
	for _, row := range res.Rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = cell(v)
		}
		t.AddRow(values...)
	}
	t.Flush()
	printPagination(res.TotalCount, res.PageNumber, res.PageSize, res.TotalPages)
	return nil
}

// describe turns an engine error into the message a caller would see,
// keeping internal details out unless --verbose is set.
func describe(err error) error {
	if flagVerbose {
		return err
	}
	apiErr := apierror.FromError(err)
	if apiErr.Details != nil {
		return fmt.Errorf("%s: %v", apiErr.Message, apiErr.Details)
	}
	return errors.New(apiErr.Message)
}
