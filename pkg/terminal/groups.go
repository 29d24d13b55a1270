package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	breakCmds
	runCmds
	dataCmds
	watchCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Running the program", runCmds},
	{"Manipulating breakpoints and memchecks", breakCmds},
	{"Viewing and patching memory", dataCmds},
	{"Managing watches", watchCmds},
	{"Other commands", otherCmds},
}
