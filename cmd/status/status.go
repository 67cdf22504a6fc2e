// Package status implements the status command, which prints a
// project's pipeline state and page inventory as formatted tables.
package status

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/rankforge/crawlpipe/internal/config"
	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/domain"
)

// Command returns the status command.
func Command() *cobra.Command {
	var showPages bool

	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show a project's pipeline status",
		Long: `Show a project's pipeline status, its analysis results when
available, and optionally the page inventory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := database.NewPostgresConnection(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			return render(cmd.Context(), db, args[0], showPages)
		},
	}

	cmd.Flags().BoolVar(&showPages, "pages", false, "include the page inventory")

	return cmd
}

func render(ctx context.Context, db *sqlx.DB, projectID string, showPages bool) error {
	projects := database.NewProjectRepository(db)
	pages := database.NewPageRepository(db)

	project, err := projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	renderProject(project)

	if project.AnalysisResult != nil {
		renderAnalysis(project.AnalysisResult)
	}

	if showPages {
		inventory, listErr := pages.ListByProject(ctx, projectID)
		if listErr != nil {
			return listErr
		}
		renderPages(inventory)
	}

	return nil
}

func renderProject(project *domain.Project) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Project " + project.ID)

	t.AppendRow(table.Row{"Domain", project.Domain})
	t.AppendRow(table.Row{"Status", string(project.Status)})
	t.AppendRow(table.Row{"Message", project.StatusMessage})
	t.AppendRow(table.Row{"Keywords", strings.Join(project.Keywords, ", ")})
	t.AppendRow(table.Row{"Updated", project.UpdatedAt.Format("2006-01-02 15:04:05")})

	t.Render()
}

func renderAnalysis(result *domain.AnalysisResult) {
	if result.TopicMap != nil {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.SetTitle(fmt.Sprintf("Topic Map (%d pages, %d words)",
			result.TopicMap.PageCount, result.TopicMap.TotalWords))
		t.AppendHeader(table.Row{"Term", "Count"})

		for _, term := range result.TopicMap.Terms {
			t.AppendRow(table.Row{term.Term, term.Count})
		}

		t.Render()
	}

	if result.Coverage != nil {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.SetTitle(fmt.Sprintf("Keyword Coverage (%.0f%%)",
			result.Coverage.CoverageRatio*100))
		t.AppendHeader(table.Row{"Keyword", "Covered"})

		for _, keyword := range result.Coverage.Covered {
			t.AppendRow(table.Row{keyword, "yes"})
		}
		for _, keyword := range result.Coverage.Missing {
			t.AppendRow(table.Row{keyword, "no"})
		}

		t.Render()
	}
}

func renderPages(inventory []*domain.Page) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Pages (%d)", len(inventory)))
	t.AppendHeader(table.Row{"URL", "Status", "Words", "Last Crawled"})

	for _, page := range inventory {
		lastCrawled := ""
		if page.LastCrawledAt != nil {
			lastCrawled = page.LastCrawledAt.Format("2006-01-02 15:04:05")
		}
		t.AppendRow(table.Row{page.URL, string(page.Status), page.WordCount, lastCrawled})
	}

	t.Render()
}
