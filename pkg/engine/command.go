package engine

import (
	"strconv"
	"strings"
)

// CommandType tags a player command. The routing layer parses raw input
// into a Command; the engine never sees slash syntax.
type CommandType string

const (
	CmdSay        CommandType = "say"
	CmdStart      CommandType = "start"
	CmdModify     CommandType = "modify"
	CmdQuery      CommandType = "query"
	CmdAdvance    CommandType = "advance"
	CmdTask       CommandType = "task"
	CmdAcceptTask CommandType = "accept"
	CmdRejectTask CommandType = "reject"
	CmdSummarize  CommandType = "summarize"
	CmdSave       CommandType = "save"
	CmdLoad       CommandType = "load"
	CmdSaves      CommandType = "saves"
	CmdStories    CommandType = "stories"
	CmdSwitch     CommandType = "switch"
	CmdReset      CommandType = "reset"
	CmdHelp       CommandType = "help"
)

// Command is the tagged-union form of one player command.
type Command struct {
	Type  CommandType
	Arg   string
	Index int  // task index for accept/reject, 1-based
	Force bool // overwrite confirmation for save
}

var slashCommands = map[string]CommandType{
	"start":   CmdStart,
	"modify":  CmdModify,
	"query":   CmdQuery,
	"advance": CmdAdvance,
	"task":    CmdTask,
	"accept":  CmdAcceptTask,
	"reject":  CmdRejectTask,
	"sum":     CmdSummarize,
	"save":    CmdSave,
	"load":    CmdLoad,
	"saves":   CmdSaves,
	"stories": CmdStories,
	"switch":  CmdSwitch,
	"reset":   CmdReset,
	"help":    CmdHelp,
}

// ParseCommand turns raw player input into a Command. Anything that is
// not a recognized slash command is free chat with the protagonist.
func ParseCommand(input string) Command {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Type: CmdSay, Arg: trimmed}
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	cmdType, ok := slashCommands[strings.ToLower(name)]
	if !ok {
		return Command{Type: CmdSay, Arg: trimmed}
	}

	cmd := Command{Type: cmdType, Arg: strings.TrimSpace(rest)}

	switch cmdType {
	case CmdSave:
		if arg, found := strings.CutPrefix(cmd.Arg, "-f "); found {
			cmd.Force = true
			cmd.Arg = strings.TrimSpace(arg)
		} else if cmd.Arg == "-f" {
			cmd.Force = true
			cmd.Arg = ""
		}
	case CmdAcceptTask, CmdRejectTask:
		if n, err := strconv.Atoi(cmd.Arg); err == nil {
			cmd.Index = n
		}
	}
	return cmd
}
