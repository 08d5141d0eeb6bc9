// Package shell is the interactive frontend: a readline loop that parses
// commands and dispatches them to the analyzer and the experiment runner.
package shell

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/pyran19/multi-account/analyzer"
	"github.com/pyran19/multi-account/config"
	"github.com/pyran19/multi-account/experiments"
	"github.com/pyran19/multi-account/montecarlo"
	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/rescache"
)

type Response struct {
	message string
}

func msg(message string) *Response {
	return &Response{message: message}
}

type CmdOptions map[string][]string

func (c CmdOptions) String(key string) string {
	v := c[key]
	if len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c CmdOptions) IntDefault(key string, defaultI int) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultI, nil
	}
	return strconv.Atoi(v[0])
}

type shellcmd struct {
	cmd     string
	args    []string
	options CmdOptions
}

var (
	errNoData            = errors.New("no command entered")
	errWrongOptionSyntax = errors.New("option missing a value")
)

// extractFields splits a command line into the command, positional args, and
// -opt value pairs. Values may be quoted.
func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNoData
	}
	cmd := &shellcmd{cmd: fields[0], options: CmdOptions{}}
	rest := fields[1:]
	for i := 0; i < len(rest); i++ {
		if strings.HasPrefix(rest[i], "-") {
			key := strings.TrimPrefix(rest[i], "-")
			if i+1 >= len(rest) {
				return nil, errWrongOptionSyntax
			}
			cmd.options[key] = append(cmd.options[key], rest[i+1])
			i++
		} else {
			cmd.args = append(cmd.args, rest[i])
		}
	}
	return cmd, nil
}

type ShellController struct {
	l *readline.Instance

	cfg      *config.Config
	params   rating.Parameters
	analyzer *analyzer.Analyzer
	expStore *experiments.Store

	threads int
	seed    uint64

	lastSim    *montecarlo.SimulationResult
	simLogFile *os.File
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func NewShellController(cfg *config.Config) (*ShellController, error) {
	params, err := cfg.Parameters()
	if err != nil {
		return nil, err
	}

	opts := []analyzer.Option{analyzer.WithStore(rescache.NewStore(cfg.CacheDir))}
	if cfg.Threads > 0 {
		opts = append(opts, analyzer.WithThreads(cfg.Threads))
	}
	if cfg.Seed != 0 {
		opts = append(opts, analyzer.WithSeed(cfg.Seed))
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mladder>\033[0m ",
		HistoryFile:     "/tmp/ladder_readline.tmp",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return nil, err
	}

	return &ShellController{
		l:        l,
		cfg:      cfg,
		params:   params,
		analyzer: analyzer.New(params, opts...),
		threads:  cfg.Threads,
		seed:     cfg.Seed,
	}, nil
}

func (sc *ShellController) showMessage(m string) {
	io.WriteString(sc.l.Stderr(), m)
	io.WriteString(sc.l.Stderr(), "\n")
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

func (sc *ShellController) execute(line string, sig chan os.Signal) error {
	cmd, err := extractFields(line)
	if err != nil {
		return err
	}
	var resp *Response
	switch cmd.cmd {
	case "solve":
		resp, err = sc.solve(cmd)
	case "sim":
		resp, err = sc.sim(cmd)
	case "hist":
		resp, err = sc.hist(cmd)
	case "compare":
		resp, err = sc.compare(cmd)
	case "runs":
		resp, err = sc.runs(cmd)
	case "set":
		resp, err = sc.set(cmd)
	case "params":
		resp, err = sc.showParams(cmd)
	case "help":
		resp, err = usage(cmd)
	case "exit", "bye", "quit":
		sig <- syscall.SIGINT
		return errors.New("sending quit signal")
	default:
		err = errors.New("command " + cmd.cmd + " not found; try `help`")
	}
	if err != nil {
		sc.showError(err)
	} else if resp != nil {
		sc.showMessage(resp.message)
	}
	return nil
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()
	defer sc.closeResources()

	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			}
			continue
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := sc.execute(line, sig); err != nil {
			break
		}
	}
	log.Debug().Msg("exiting readline loop")
}

// Execute runs a single command non-interactively, as in `ladder solve 10`.
func (sc *ShellController) Execute(args []string) error {
	line := shellquote.Join(args...)
	cmd, err := extractFields(line)
	if err != nil {
		return err
	}
	var resp *Response
	switch cmd.cmd {
	case "solve":
		resp, err = sc.solve(cmd)
	case "sim":
		resp, err = sc.sim(cmd)
	case "compare":
		resp, err = sc.compare(cmd)
	case "runs":
		resp, err = sc.runs(cmd)
	case "params":
		resp, err = sc.showParams(cmd)
	default:
		err = errors.New("command " + cmd.cmd + " cannot run non-interactively")
	}
	if err != nil {
		return err
	}
	if resp != nil {
		io.WriteString(os.Stdout, resp.message+"\n")
	}
	sc.closeResources()
	return nil
}

func (sc *ShellController) closeResources() {
	if sc.simLogFile != nil {
		sc.simLogFile.Close()
		sc.simLogFile = nil
	}
	if sc.expStore != nil {
		sc.expStore.Close()
		sc.expStore = nil
	}
}

// experimentStore opens the sqlite store on first use.
func (sc *ShellController) experimentStore() (*experiments.Store, error) {
	if sc.expStore != nil {
		return sc.expStore, nil
	}
	store, err := experiments.OpenStore(sc.cfg.ResultsDB)
	if err != nil {
		return nil, err
	}
	sc.expStore = store
	return store, nil
}
