package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/jobstore"
	"github.com/quartzlabs/wikiexport/pkg/scope"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage export jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List export jobs",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one export job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an export job from a spec file",
	Long: `Create an export job from a YAML spec file.

Example spec:
  kind: pages
  format: markdown
  owner:
    id: user-1
    display_name: Ada
  scope:
    root: /wiki/projects
    includes: ["**/*.md"]`,
	RunE: runJobsCreate,
}

var jobsRestartCmd = &cobra.Command{
	Use:   "restart <job-id>",
	Short: "Request a full restart of an in-progress job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRestart,
}

var jobsSpecPath string

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsCreateCmd, jobsRestartCmd)

	jobsCreateCmd.Flags().StringVarP(&jobsSpecPath, "spec", "f", "", "Path to job spec file (required)")
	_ = jobsCreateCmd.MarkFlagRequired("spec")
}

func openStore(cmd *cobra.Command) (*jobstore.Store, error) {
	return jobstore.Open(cmd.Context(), jobstore.Config{Path: loadedConfig.Store.Path})
}

func runJobsList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return exitError(exitFileWriteError, "Failed to open job store", err)
	}
	defer func() { _ = store.Close() }()

	jobs, err := store.ListJobs(cmd.Context())
	if err != nil {
		return exitError(exitFileWriteError, "Failed to list jobs", err)
	}

	for _, j := range jobs {
		fmt.Printf("%s  %-12s  %-8s  %-8s  %s\n",
			j.ID, j.Status, j.Kind, j.Format, j.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return exitError(exitFileWriteError, "Failed to open job store", err)
	}
	defer func() { _ = store.Close() }()

	j, err := store.GetJob(cmd.Context(), args[0])
	if err != nil {
		return exitError(exitInvalidArgument, "Job not found", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(j)
}

// jobSpec is the YAML shape of a job spec file.
type jobSpec struct {
	Kind   job.Kind   `yaml:"kind"`
	Format job.Format `yaml:"format"`
	Owner  struct {
		ID          string `yaml:"id"`
		DisplayName string `yaml:"display_name"`
	} `yaml:"owner"`
	Scope scope.Scope `yaml:"scope"`
}

func runJobsCreate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(jobsSpecPath)
	if err != nil {
		return exitError(exitInvalidArgument, "Cannot read job spec", err)
	}

	var spec jobSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return exitError(exitInvalidArgument, "Invalid job spec", err)
	}
	if err := spec.Scope.Validate(); err != nil {
		return exitError(exitInvalidArgument, "Invalid scope", err)
	}
	if spec.Format == job.FormatPDF && loadedConfig.Convert.Endpoint == "" {
		return exitError(exitInvalidArgument, "PDF export requires a conversion service",
			fmt.Errorf("convert.endpoint is not configured"))
	}

	scopeJSON, err := json.Marshal(&spec.Scope)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid scope", err)
	}
	scopeHash, err := scope.Hash(&spec.Scope)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid scope", err)
	}

	store, err := openStore(cmd)
	if err != nil {
		return exitError(exitFileWriteError, "Failed to open job store", err)
	}
	defer func() { _ = store.Close() }()

	dup, err := store.FindInProgressDuplicate(cmd.Context(), spec.Kind, scopeHash, spec.Format)
	if err != nil {
		return exitError(exitFileWriteError, "Duplicate check failed", err)
	}
	if dup != nil {
		return exitError(exitInvalidArgument, "Duplicate export already in progress",
			fmt.Errorf("job %s has the same kind, scope, and format", dup.ID))
	}

	j, err := store.CreateJob(cmd.Context(), jobstore.CreateJobParams{
		Kind:      spec.Kind,
		Owner:     job.Owner{ID: spec.Owner.ID, DisplayName: spec.Owner.DisplayName},
		ScopeJSON: scopeJSON,
		ScopeHash: scopeHash,
		Format:    spec.Format,
	})
	if err != nil {
		return exitError(exitFileWriteError, "Failed to create job", err)
	}

	fmt.Println(j.ID)
	return nil
}

func runJobsRestart(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return exitError(exitFileWriteError, "Failed to open job store", err)
	}
	defer func() { _ = store.Close() }()

	j, err := store.GetJob(cmd.Context(), args[0])
	if err != nil {
		return exitError(exitInvalidArgument, "Job not found", err)
	}
	if j.Status.Terminal() {
		return exitError(exitInvalidArgument, "Cannot restart a terminal job",
			fmt.Errorf("job %s is %s", j.ID, j.Status))
	}

	if err := store.RequestRestart(cmd.Context(), j.ID); err != nil {
		return exitError(exitFileWriteError, "Failed to request restart", err)
	}
	fmt.Printf("restart requested for %s\n", j.ID)
	return nil
}
