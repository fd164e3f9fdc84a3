package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/progress"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/recommend"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger, used to redirect logs away from the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, libraryCommand, recommendCommand, profileCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// stack bundles the database-backed dependencies commands share.
type stack struct {
	db        *sql.DB
	users     *repositories.UserRepository
	sessions  *repositories.SessionRepository
	tracks    *repositories.TrackRepository
	clusters  *repositories.ClusterRepository
	recs      *repositories.RecommendationRepository
	store     *progress.Store
	engine    *tasks.AnalysisEngine
	generator *recommend.Generator
}

func (s *stack) Close() error {
	return s.db.Close()
}

// openStack opens the configured database and wires the repositories, analysis
// engine and recommendation generator on top of it. Migrations run on every
// open so a fresh database works without an explicit setup step.
func (r *Runner) openStack() (*stack, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	users := repositories.NewUserRepository(db)
	sessions := repositories.NewSessionRepository(db)
	tracks := repositories.NewTrackRepository(db)
	clusters := repositories.NewClusterRepository(db)
	recs := repositories.NewRecommendationRepository(db)
	store := progress.NewStore(repositories.NewProgressRepository(db), r.logger)

	return &stack{
		db:        db,
		users:     users,
		sessions:  sessions,
		tracks:    tracks,
		clusters:  clusters,
		recs:      recs,
		store:     store,
		engine:    tasks.NewAnalysisEngine(r.catalog, users, sessions, tracks, clusters, recs, store, r.config.Analysis, r.logger),
		generator: recommend.NewGenerator(tracks, clusters, recs, sessions, r.config.Limits, r.logger),
	}, nil
}

// sessionFilePath returns where the CLI remembers the active session ID,
// stored alongside the database file.
func (r *Runner) sessionFilePath() string {
	return filepath.Join(filepath.Dir(r.config.Database.Path), ".session")
}

func (r *Runner) saveSessionID(id string) error {
	path := r.sessionFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// currentSession resolves the saved session ID to a user and session.
func (r *Runner) currentSession(s *stack) (*models.User, *models.Session, error) {
	data, err := os.ReadFile(r.sessionFilePath())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: run 'nostalgic auth' first", shared.ErrNotAuthenticated)
	}

	session, err := s.sessions.Get(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: saved session is no longer valid, run 'nostalgic auth' again", shared.ErrNotAuthenticated)
	}

	user, err := s.users.Get(session.UserID())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrUserNotFound, err)
	}

	return user, session, nil
}

// boundCatalog binds the catalog to the session's access token, refreshing the
// token first when it has expired.
func (r *Runner) boundCatalog(ctx context.Context, s *stack, session *models.Session) (services.Catalog, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: Spotify credentials not configured", shared.ErrServiceUnavailable)
	}

	if session.TokenExpired() {
		r.logger.Info("access token expired, refreshing", "session_id", session.ID())
		pair, err := r.catalog.Refresh(ctx, session.RefreshToken())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}
		session.SetTokens(pair.AccessToken, pair.RefreshToken, pair.ExpiresAt)
		if err := s.sessions.Update(session); err != nil {
			r.logger.Warn("failed to persist refreshed tokens", "error", err)
		}
	}

	return r.catalog.WithAccessToken(session.AccessToken()), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
