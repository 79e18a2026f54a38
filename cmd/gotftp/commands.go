package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/zo0mini/gotftp/core"
	"github.com/zo0mini/gotftp/logger"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func New() *cli.Command {
	return &cli.Command{
		Name:  "gotftp",
		Usage: "transfer a single file to or from a TFTP server",
		Commands: []*cli.Command{
			getCommand(),
			putCommand(),
		},
	}
}

func defaultFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "server port",
			Value:   core.DefaultPort,
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "receive timeout per wait",
			Value:   core.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:    "retries",
			Aliases: []string{"r"},
			Usage:   "retransmission attempts per wait",
			Value:   core.DefaultRetries,
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "download a file from the server",
		ArgsUsage: "<host> <filename>",
		Flags: append(defaultFlags(),
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "overwrite the local file without asking",
			},
		),
		Action: getAction,
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "upload a file to the server",
		ArgsUsage: "<host> <filename>",
		Flags:     defaultFlags(),
		Action:    putAction,
	}
}

func getAction(ctx context.Context, cmd *cli.Command) error {
	host, filename, err := transferArgs(cmd)
	if err != nil {
		return err
	}

	ok, err := overwriteAllowed(filename, cmd.Bool("force"), confirm)
	if err != nil {
		return errors.Wrap(err, "confirm overwrite")
	}
	if !ok {
		fmt.Println(failStyle.Render("Aborted."))
		return nil
	}

	session, cleanup, err := newSession(cmd, host, filename,
		core.WithProgress(core.TransferBar(-1, "receiving")),
	)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := session.Get(ctx, filename); err != nil {
		fmt.Println(failStyle.Render("Error: " + err.Error()))
		return nil // reported failures still exit 0
	}

	fmt.Println(okStyle.Render("File transfer completed."))
	return nil
}

func putAction(ctx context.Context, cmd *cli.Command) error {
	host, filename, err := transferArgs(cmd)
	if err != nil {
		return err
	}

	var opts []core.Option
	if info, err := os.Stat(filename); err == nil {
		opts = append(opts, core.WithProgress(core.TransferBar(info.Size(), "sending")))
	}

	session, cleanup, err := newSession(cmd, host, filename, opts...)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := session.Put(ctx, filename); err != nil {
		fmt.Println(failStyle.Render("Error: " + err.Error()))
		return nil
	}

	fmt.Println(okStyle.Render("File upload completed."))
	return nil
}

func newSession(cmd *cli.Command, host, filename string, opts ...core.Option) (*core.Session, func(), error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(int(cmd.Int("port")))))
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolve server address")
	}

	transport, err := core.NewUDPTransport(cmd.Duration("timeout"))
	if err != nil {
		return nil, nil, err
	}

	log := logger.Discard()
	if path, err := logger.LogPath(); err == nil {
		log = logger.New(path)
	}

	opts = append(opts,
		core.WithLogger(log),
		core.WithRetries(int(cmd.Int("retries"))),
	)

	session := core.NewSession(transport, addr, filename, opts...)

	return session, func() { transport.Close() }, nil
}

func transferArgs(cmd *cli.Command) (string, string, error) {
	args := cmd.Args()
	if args.Len() != 2 {
		return "", "", errors.New("expected arguments: <host> <filename>")
	}

	return args.Get(0), args.Get(1), nil
}

// overwriteAllowed decides whether get may replace an existing local file,
// asking the user unless force is set or the file does not exist yet.
func overwriteAllowed(filename string, force bool, ask func(string) (bool, error)) (bool, error) {
	if force {
		return true, nil
	}
	if _, err := os.Stat(filename); err != nil {
		return true, nil
	}

	return ask(fmt.Sprintf("%s already exists, overwrite?", filename))
}

func confirm(txt string) (bool, error) {
	var ok bool

	err := huh.NewConfirm().
		Title(txt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()

	return ok, err
}
