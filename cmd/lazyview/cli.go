package main

import (
	"flag"
	"fmt"
	"io"
	"slices"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

const (
	INSTALL_COMPLETIONS_SUBCMD   = "install-completions"
	UNINSTALL_COMPLETIONS_SUBCMD = "uninstall-completions"
	HELP_SUBCMD                  = "help"
)

var (
	SUBCOMMANDS = []string{INSTALL_COMPLETIONS_SUBCMD, UNINSTALL_COMPLETIONS_SUBCMD, HELP_SUBCMD}

	HELP_SUBCMD_EQUIVALENTS = []string{"--help", "-help", "-h"}

	SUBCOMMAND_DESCRIPTIONS = [][2]string{
		{INSTALL_COMPLETIONS_SUBCMD, "install CLI completions by addding the completion command to the detected rc file (supported shells are bash, zsh and fish)"},
		{UNINSTALL_COMPLETIONS_SUBCMD, "uninstall CLI completions by removing the completion command from the detected rc file"},
		{HELP_SUBCMD, "show this help"},
	}

	KEY_DESCRIPTIONS = [][2]string{
		{"j, down", "next row"},
		{"k, up", "previous row"},
		{"space, page down", "next page"},
		{"b, page up", "previous page"},
		{"g, home", "first row"},
		{"G, end", "last loaded row, load more rows"},
		{"L", "load more rows"},
		{"/", "search (text, i:text, glob:pattern, re:regex, json:path=value, json:path~text, !search)"},
		{"tab", "toggle the selection of the current row"},
		{"r", "reload"},
		{"q, ctrl+c", "quit"},
	}

	LAZYVIEW_CMD_HELP = "usage: " + COMMAND_NAME + " [options] <file | glob pattern>\n\n"

	cmd = &complete.Command{
		Sub: map[string]*complete.Command{
			INSTALL_COMPLETIONS_SUBCMD:   {},
			UNINSTALL_COMPLETIONS_SUBCMD: {},
			HELP_SUBCMD:                  {},
		},
		Flags: map[string]complete.Predictor{
			"demo":    predict.Nothing,
			"counter": predict.Nothing,
			"search":  predict.Something,
			"config":  predict.Files("*.yaml"),
			"json":    predict.Nothing,
			"dump":    predict.Something,
			"number":  predict.Nothing,
		},
		Args: predict.Files("*"),
	}
)

func init() {
	LAZYVIEW_CMD_HELP += "commands:\n"
	for _, entry := range SUBCOMMAND_DESCRIPTIONS {
		LAZYVIEW_CMD_HELP += "\t" + entry[0] + " - " + entry[1] + "\n"
	}

	LAZYVIEW_CMD_HELP += "\nkeys:\n"
	for _, entry := range KEY_DESCRIPTIONS {
		LAZYVIEW_CMD_HELP += "\t" + entry[0] + " - " + entry[1] + "\n"
	}
}

func isHelpArg(arg string) bool {
	return arg == HELP_SUBCMD || slices.Contains(HELP_SUBCMD_EQUIVALENTS, arg)
}

func showHelp(flags *flag.FlagSet, out io.Writer) {
	fmt.Fprint(out, LAZYVIEW_CMD_HELP)

	flags.SetOutput(out)
	fmt.Fprint(out, "\noptions:\n")
	flags.PrintDefaults()
}
