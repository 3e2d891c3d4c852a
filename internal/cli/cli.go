// Package cli provides the command line interface.
package cli

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/rmtree/internal/config"
	"github.com/temirov/rmtree/internal/jama"
	"github.com/temirov/rmtree/internal/output"
	"github.com/temirov/rmtree/internal/services/clipboard"
	"github.com/temirov/rmtree/internal/traverse"
	"github.com/temirov/rmtree/internal/utils"
)

const (
	configFlagName        = "config"
	hostFlagName          = "host"
	usernameFlagName      = "username"
	formatFlagName        = "format"
	copyFlagName          = "copy"
	versionFlagName       = "version"
	workersFlagName       = "workers"
	tagsFlagName          = "tags"
	predicateFlagName     = "predicate"
	containerTypeFlagName = "container-type"
	sequentialFlagName    = "sequential"
	callTimeoutFlagName   = "call-timeout"
	pollIntervalFlagName  = "poll-interval"
	metricsFileFlagName   = "metrics-file"
	forceFlagName         = "force"
	globalFlagName        = "global"

	versionTemplate      = "rmtree version: %s\n"
	rootUse              = "rmtree"
	rootShortDescription = "rmtree command line interface"
	rootLongDescription  = `rmtree walks item hierarchies on a Jama requirements server.
It lists every descendant of one or more items with a bounded pool of concurrent workers,
optionally enriched with tags. Use --format to select json, yaml, xml, or raw output.`

	descendantsUse              = "descendants <item-id|document-key>..."
	childrenUse                 = "children <item-id|document-key>"
	tagsUse                     = "tags <item-id|document-key>"
	rootsUse                    = "roots <project-id|project-key> [root-name]"
	projectsUse                 = "projects"
	initUse                     = "init"
	descendantsAlias            = "d"
	childrenAlias               = "c"
	tagsAlias                   = "t"
	rootsAlias                  = "r"
	projectsAlias               = "p"
	descendantsShortDescription = "list every descendant of items (" + descendantsAlias + ")"
	childrenShortDescription    = "list direct children of an item (" + childrenAlias + ")"
	tagsShortDescription        = "show the tags of an item (" + tagsAlias + ")"
	rootsShortDescription       = "list root items of a project (" + rootsAlias + ")"
	projectsShortDescription    = "list projects with their keys (" + projectsAlias + ")"
	initShortDescription        = "write a default configuration file"

	descendantsLongDescription = `Traverse the item tree below each argument and report every descendant once.
Items whose children cannot be fetched are reported as failures and the traversal continues.
Rejected credentials abort the command.`
	descendantsUsageExample = `  # All descendants of item 1234 with tags, as YAML
  rmtree descendants --tags --format yaml 1234

  # Two roots, 32 workers, only expanding containers
  rmtree d --workers 32 --predicate approximate 1234 5678

  # Items can be named by document key
  rmtree d PRJ-SET-12`

	configFlagDescription        = "path to a configuration file"
	hostFlagDescription          = "server address, e.g. https://jama.example.com"
	usernameFlagDescription      = "user name for basic authentication"
	formatFlagDescription        = "output format: json, yaml, xml, or raw"
	copyFlagDescription          = "copy rendered output to the clipboard"
	versionFlagDescription       = "display application version"
	workersFlagDescription       = "number of concurrent workers"
	tagsFlagDescription          = "fetch tags for every discovered item"
	predicateFlagDescription     = "which items to expand: always, approximate, or strict"
	containerTypeFlagDescription = "item type id treated as a container by the approximate predicate"
	sequentialFlagDescription    = "traverse on a single goroutine"
	callTimeoutFlagDescription   = "timeout for a single remote call"
	pollIntervalFlagDescription  = "how long idle workers wait for new items"
	metricsFileFlagDescription   = "write traversal metrics to this file in Prometheus text format"
	forceFlagDescription         = "overwrite an existing configuration file"
	globalFlagDescription        = "write the configuration under the home directory"

	errorInvalidItemIDFormat    = "invalid item id or document key %q"
	errorInvalidProjectIDFormat = "invalid project id or key %q"
	errorMissingHost            = "server host is not configured; set server.host or pass --" + hostFlagName
	initCreatedMessageFormat    = "Configuration written to %s\n"
	warningCopyFailedFormat     = "Warning: failed to copy output to clipboard: %v\n"
	projectRootPrefix           = "project/"
	projectsRoot                = "projects"
	projectNodeType             = "project"
)

var (
	documentKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(-[A-Za-z0-9_]+)+$`)
	projectKeyPattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// application carries the collaborators shared by every command.
type application struct {
	logger     *zap.Logger
	stdout     io.Writer
	stderr     io.Writer
	copier     clipboard.Copier
	httpClient *http.Client
	workingDir string
}

// Execute runs the rmtree application.
func Execute(ctx context.Context, logger *zap.Logger) error {
	app := &application{
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
		copier: clipboard.NewService(),
	}
	rootCommand := createRootCommand(app)
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// commonOptions holds flags shared by all server commands.
type commonOptions struct {
	configPath  string
	host        string
	username    string
	format      string
	copyEnabled bool
}

// createRootCommand builds the root Cobra command.
func createRootCommand(app *application) *cobra.Command {
	var showVersion bool
	var common commonOptions

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				return nil
			}
			return command.Help()
		},
	}
	rootCommand.SetOut(app.stdout)
	rootCommand.SetErr(app.stderr)
	rootCommand.Flags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	persistent := rootCommand.PersistentFlags()
	persistent.StringVar(&common.configPath, configFlagName, utils.EmptyString, configFlagDescription)
	persistent.StringVar(&common.host, hostFlagName, utils.EmptyString, hostFlagDescription)
	persistent.StringVar(&common.username, usernameFlagName, utils.EmptyString, usernameFlagDescription)
	persistent.StringVar(&common.format, formatFlagName, string(output.FormatJSON), formatFlagDescription)
	registerBooleanFlag(persistent, &common.copyEnabled, copyFlagName, false, copyFlagDescription)

	rootCommand.AddCommand(
		createDescendantsCommand(app, &common),
		createChildrenCommand(app, &common),
		createTagsCommand(app, &common),
		createRootsCommand(app, &common),
		createProjectsCommand(app, &common),
		createInitCommand(app),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// settings is the effective configuration after flags are applied.
type settings struct {
	configuration config.ApplicationConfiguration
	format        output.Format
	copyEnabled   bool
}

func (app *application) resolveSettings(command *cobra.Command, common *commonOptions) (settings, error) {
	configuration, loadErr := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: app.workingDir,
		ExplicitFilePath: common.configPath,
	})
	if loadErr != nil {
		return settings{}, loadErr
	}
	flags := command.Flags()
	if flags.Changed(hostFlagName) {
		configuration.Server.Host = common.host
	}
	if flags.Changed(usernameFlagName) {
		configuration.Server.Username = common.username
	}
	formatName := configuration.Output.Format
	if flags.Changed(formatFlagName) || formatName == utils.EmptyString {
		formatName = common.format
	}
	format, formatErr := output.ParseFormat(formatName)
	if formatErr != nil {
		return settings{}, formatErr
	}
	copyEnabled := common.copyEnabled
	if !flags.Changed(copyFlagName) && configuration.Output.Copy != nil {
		copyEnabled = *configuration.Output.Copy
	}
	return settings{configuration: configuration, format: format, copyEnabled: copyEnabled}, nil
}

func (app *application) buildClient(server config.ServerConfiguration) (jama.Client, error) {
	if strings.TrimSpace(server.Host) == utils.EmptyString {
		return jama.Client{}, errors.New(errorMissingHost)
	}
	httpClient := app.httpClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if server.InsecureSkipVerify != nil && *server.InsecureSkipVerify {
			// #nosec G402
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Transport: transport}
	}
	client := jama.NewClient(httpClient).
		WithBaseURL(server.Host).
		WithCredentials(server.Username, server.Password).
		WithUserAgent(server.UserAgent).
		WithLogger(app.logger)
	if server.Timeout != nil {
		client = client.WithTimeout(*server.Timeout)
	}
	if server.PageSize != nil {
		client = client.WithPageSize(*server.PageSize)
	}
	if server.RateLimit != nil {
		client = client.WithRateLimit(*server.RateLimit, 1)
	}
	if server.RetryAttempts != nil {
		client = client.WithRetry(*server.RetryAttempts, 0)
	}
	return client, nil
}

// emit renders reports, prints them and optionally copies them to the clipboard.
func (app *application) emit(current settings, reports []output.Report) error {
	rendered, renderErr := output.Render(current.format, reports)
	if renderErr != nil {
		return renderErr
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	if _, writeErr := io.WriteString(app.stdout, rendered); writeErr != nil {
		return writeErr
	}
	if current.copyEnabled && app.copier != nil {
		if copyErr := app.copier.Copy(rendered); copyErr != nil {
			fmt.Fprintf(app.stderr, warningCopyFailedFormat, copyErr)
		}
	}
	return nil
}

func (app *application) warnFailures(reports []output.Report) {
	for _, report := range reports {
		for _, failure := range report.Failures {
			fmt.Fprintf(app.stderr, utils.WarningFailedNodeFormat, failure.Stage, failure.Ref, failure.Error)
		}
	}
}

// descendantsOptions stores flags of the descendants command.
type descendantsOptions struct {
	workers        int
	tags           bool
	predicate      string
	containerTypes []int
	sequential     bool
	callTimeout    time.Duration
	pollInterval   time.Duration
	metricsFile    string
}

func createDescendantsCommand(app *application, common *commonOptions) *cobra.Command {
	var options descendantsOptions

	descendantsCommand := &cobra.Command{
		Use:     descendantsUse,
		Aliases: []string{descendantsAlias},
		Short:   descendantsShortDescription,
		Long:    descendantsLongDescription,
		Example: descendantsUsageExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			itemArguments, parseErr := parseItemArguments(arguments)
			if parseErr != nil {
				return parseErr
			}
			current, settingsErr := app.resolveSettings(command, common)
			if settingsErr != nil {
				return settingsErr
			}
			traversalOptions, optionsErr := options.resolve(command, current.configuration.Traversal)
			if optionsErr != nil {
				return optionsErr
			}
			client, clientErr := app.buildClient(current.configuration.Server)
			if clientErr != nil {
				return clientErr
			}
			roots, resolveErr := resolveItemArguments(command.Context(), client, itemArguments)
			if resolveErr != nil {
				return resolveErr
			}
			registry := prometheus.NewRegistry()
			traversalOptions.Logger = app.logger
			traversalOptions.Metrics = traverse.NewMetrics(registry)
			traverser := traverse.New(client, traversalOptions)

			reports, traverseErr := runTraversals(command.Context(), traverser, roots, options.sequential)
			if traverseErr != nil && !errors.Is(traverseErr, traverse.ErrCancelled) {
				return traverseErr
			}
			app.warnFailures(reports)
			if options.metricsFile != utils.EmptyString {
				if writeErr := prometheus.WriteToTextfile(options.metricsFile, registry); writeErr != nil {
					return fmt.Errorf("write metrics to %s: %w", options.metricsFile, writeErr)
				}
			}
			if emitErr := app.emit(current, reports); emitErr != nil {
				return emitErr
			}
			return traverseErr
		},
	}

	flags := descendantsCommand.Flags()
	flags.IntVar(&options.workers, workersFlagName, traverse.DefaultWorkers, workersFlagDescription)
	registerBooleanFlag(flags, &options.tags, tagsFlagName, false, tagsFlagDescription)
	flags.StringVar(&options.predicate, predicateFlagName, jama.PredicateAlways, predicateFlagDescription)
	flags.IntSliceVar(&options.containerTypes, containerTypeFlagName, nil, containerTypeFlagDescription)
	registerBooleanFlag(flags, &options.sequential, sequentialFlagName, false, sequentialFlagDescription)
	flags.DurationVar(&options.callTimeout, callTimeoutFlagName, traverse.DefaultCallTimeout, callTimeoutFlagDescription)
	flags.DurationVar(&options.pollInterval, pollIntervalFlagName, traverse.DefaultPollInterval, pollIntervalFlagDescription)
	flags.StringVar(&options.metricsFile, metricsFileFlagName, utils.EmptyString, metricsFileFlagDescription)
	return descendantsCommand
}

// resolve overlays explicitly set flags on the configured traversal defaults.
func (options descendantsOptions) resolve(command *cobra.Command, configured config.TraversalConfiguration) (traverse.Options, error) {
	flags := command.Flags()
	resolved := traverse.Options{
		Workers:      options.workers,
		PollInterval: options.pollInterval,
		CallTimeout:  options.callTimeout,
		FetchTags:    options.tags,
	}
	if !flags.Changed(workersFlagName) && configured.Workers != nil {
		resolved.Workers = *configured.Workers
	}
	if !flags.Changed(pollIntervalFlagName) && configured.PollInterval != nil {
		resolved.PollInterval = *configured.PollInterval
	}
	if !flags.Changed(callTimeoutFlagName) && configured.CallTimeout != nil {
		resolved.CallTimeout = *configured.CallTimeout
	}
	if !flags.Changed(tagsFlagName) && configured.Tags != nil {
		resolved.FetchTags = *configured.Tags
	}
	predicateName := options.predicate
	if !flags.Changed(predicateFlagName) && configured.Predicate != utils.EmptyString {
		predicateName = configured.Predicate
	}
	containerTypes := options.containerTypes
	if !flags.Changed(containerTypeFlagName) {
		containerTypes = configured.ContainerTypes
	}
	predicate, predicateErr := jama.PredicateByName(predicateName, utils.DeduplicateIntegers(containerTypes))
	if predicateErr != nil {
		return traverse.Options{}, predicateErr
	}
	resolved.Expandable = predicate
	return resolved, nil
}

// runTraversals traverses every root concurrently. Reports keep the order of roots. A cancelled
// run still contributes its partial report.
func runTraversals(ctx context.Context, traverser *traverse.Traverser, roots []traverse.NodeRef, sequential bool) ([]output.Report, error) {
	reports := make([]output.Report, len(roots))
	completed := make([]bool, len(roots))
	group, groupContext := errgroup.WithContext(ctx)
	for index, root := range roots {
		index, root := index, root
		group.Go(func() error {
			traverseRoot := traverser.Traverse
			if sequential {
				traverseRoot = traverser.Walk
			}
			result, err := traverseRoot(groupContext, root)
			if err == nil || errors.Is(err, traverse.ErrCancelled) {
				reports[index] = output.NewReport(result)
				completed[index] = true
			}
			if err != nil {
				return fmt.Errorf("traverse %s: %w", root, err)
			}
			return nil
		})
	}
	waitErr := group.Wait()
	finished := make([]output.Report, 0, len(reports))
	for index, report := range reports {
		if completed[index] {
			finished = append(finished, report)
		}
	}
	return finished, waitErr
}

func createChildrenCommand(app *application, common *commonOptions) *cobra.Command {
	return &cobra.Command{
		Use:     childrenUse,
		Aliases: []string{childrenAlias},
		Short:   childrenShortDescription,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			itemArguments, parseErr := parseItemArguments(arguments)
			if parseErr != nil {
				return parseErr
			}
			current, client, setupErr := app.setup(command, common)
			if setupErr != nil {
				return setupErr
			}
			refs, resolveErr := resolveItemArguments(command.Context(), client, itemArguments)
			if resolveErr != nil {
				return resolveErr
			}
			children, listErr := client.ListChildren(command.Context(), refs[0])
			if listErr != nil {
				return listErr
			}
			for index := range children {
				if children[index].Parent == utils.EmptyString {
					children[index].Parent = refs[0]
				}
			}
			return app.emit(current, []output.Report{output.NewListingReport(refs[0], children)})
		},
	}
}

func createTagsCommand(app *application, common *commonOptions) *cobra.Command {
	return &cobra.Command{
		Use:     tagsUse,
		Aliases: []string{tagsAlias},
		Short:   tagsShortDescription,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			itemArguments, parseErr := parseItemArguments(arguments)
			if parseErr != nil {
				return parseErr
			}
			current, client, setupErr := app.setup(command, common)
			if setupErr != nil {
				return setupErr
			}
			refs, resolveErr := resolveItemArguments(command.Context(), client, itemArguments)
			if resolveErr != nil {
				return resolveErr
			}
			item, itemErr := client.Item(command.Context(), refs[0])
			if itemErr != nil {
				return itemErr
			}
			tags, tagsErr := client.FetchTags(command.Context(), refs[0])
			if tagsErr != nil {
				return tagsErr
			}
			descriptor := item.Descriptor()
			descriptor.Tags = tags
			return app.emit(current, []output.Report{output.NewListingReport(refs[0], []traverse.NodeDescriptor{descriptor})})
		},
	}
}

func createRootsCommand(app *application, common *commonOptions) *cobra.Command {
	return &cobra.Command{
		Use:     rootsUse,
		Aliases: []string{rootsAlias},
		Short:   rootsShortDescription,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(command *cobra.Command, arguments []string) error {
			project, parseErr := parseProjectArgument(arguments[0])
			if parseErr != nil {
				return parseErr
			}
			current, client, setupErr := app.setup(command, common)
			if setupErr != nil {
				return setupErr
			}
			projectID, resolveErr := project.resolve(command.Context(), client)
			if resolveErr != nil {
				return resolveErr
			}
			var items []jama.Item
			if len(arguments) > 1 {
				named, lookupErr := client.RootItemByName(command.Context(), projectID, arguments[1])
				if lookupErr != nil {
					return lookupErr
				}
				items = []jama.Item{named}
			} else {
				listed, listErr := client.RootItems(command.Context(), projectID)
				if listErr != nil {
					return listErr
				}
				items = listed
			}
			descriptors := make([]traverse.NodeDescriptor, 0, len(items))
			for _, item := range items {
				descriptors = append(descriptors, item.Descriptor())
			}
			root := projectRef(projectID)
			return app.emit(current, []output.Report{output.NewListingReport(root, descriptors)})
		},
	}
}

func createProjectsCommand(app *application, common *commonOptions) *cobra.Command {
	return &cobra.Command{
		Use:     projectsUse,
		Aliases: []string{projectsAlias},
		Short:   projectsShortDescription,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			current, client, setupErr := app.setup(command, common)
			if setupErr != nil {
				return setupErr
			}
			projects, listErr := client.Projects(command.Context())
			if listErr != nil {
				return listErr
			}
			descriptors := make([]traverse.NodeDescriptor, 0, len(projects))
			for _, project := range projects {
				descriptors = append(descriptors, traverse.NodeDescriptor{
					Ref:  projectRef(project.ID),
					Type: projectNodeType,
					Name: project.Name(),
					Key:  project.Key(),
				})
			}
			return app.emit(current, []output.Report{output.NewListingReport(projectsRoot, descriptors)})
		},
	}
}

func createInitCommand(app *application) *cobra.Command {
	var force bool
	var global bool
	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initErr := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: app.workingDir,
			})
			if initErr != nil {
				return initErr
			}
			fmt.Fprintf(app.stdout, initCreatedMessageFormat, path)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	return initCommand
}

func (app *application) setup(command *cobra.Command, common *commonOptions) (settings, jama.Client, error) {
	current, settingsErr := app.resolveSettings(command, common)
	if settingsErr != nil {
		return settings{}, jama.Client{}, settingsErr
	}
	client, clientErr := app.buildClient(current.configuration.Server)
	if clientErr != nil {
		return settings{}, jama.Client{}, clientErr
	}
	return current, client, nil
}

// itemArgument is an item named on the command line, either by id or by document key.
type itemArgument struct {
	ref         traverse.NodeRef
	documentKey string
}

// parseItemArguments accepts positive integer ids and document keys such as PRJ-SET-12 and removes
// duplicates. It does not contact the server.
func parseItemArguments(arguments []string) ([]itemArgument, error) {
	seen := make(map[itemArgument]struct{}, len(arguments))
	parsed := make([]itemArgument, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		var current itemArgument
		identifier, parseErr := strconv.ParseInt(trimmed, 10, 64)
		switch {
		case parseErr == nil && identifier > 0:
			current.ref = traverse.NodeRef(strconv.FormatInt(identifier, 10))
		case parseErr != nil && documentKeyPattern.MatchString(trimmed):
			current.documentKey = trimmed
		default:
			return nil, fmt.Errorf(errorInvalidItemIDFormat, argument)
		}
		if _, duplicate := seen[current]; duplicate {
			continue
		}
		seen[current] = struct{}{}
		parsed = append(parsed, current)
	}
	return parsed, nil
}

// resolveItemArguments looks up document keys and returns the item references in argument order,
// dropping references that several arguments resolve to.
func resolveItemArguments(ctx context.Context, client jama.Client, arguments []itemArgument) ([]traverse.NodeRef, error) {
	seen := make(map[traverse.NodeRef]struct{}, len(arguments))
	refs := make([]traverse.NodeRef, 0, len(arguments))
	for _, argument := range arguments {
		ref := argument.ref
		if argument.documentKey != utils.EmptyString {
			item, lookupErr := client.ItemByDocumentKey(ctx, argument.documentKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
			ref = item.Descriptor().Ref
		}
		if _, duplicate := seen[ref]; duplicate {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs, nil
}

// projectArgument is a project named by numeric id or by project key.
type projectArgument struct {
	id  int64
	key string
}

func parseProjectArgument(argument string) (projectArgument, error) {
	trimmed := strings.TrimSpace(argument)
	identifier, parseErr := strconv.ParseInt(trimmed, 10, 64)
	switch {
	case parseErr == nil && identifier > 0:
		return projectArgument{id: identifier}, nil
	case parseErr != nil && projectKeyPattern.MatchString(trimmed):
		return projectArgument{key: trimmed}, nil
	default:
		return projectArgument{}, fmt.Errorf(errorInvalidProjectIDFormat, argument)
	}
}

func (project projectArgument) resolve(ctx context.Context, client jama.Client) (int64, error) {
	if project.key == utils.EmptyString {
		return project.id, nil
	}
	resolved, lookupErr := client.ProjectByKey(ctx, project.key)
	if lookupErr != nil {
		return 0, lookupErr
	}
	return resolved.ID, nil
}

func projectRef(id int64) traverse.NodeRef {
	return traverse.NodeRef(projectRootPrefix + strconv.FormatInt(id, 10))
}
