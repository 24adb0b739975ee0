package engine

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Command is a single rover instruction
type Command rune

const (
	CommandMove  Command = 'M'
	CommandRight Command = 'R'
	CommandLeft  Command = 'L'
)

// Known reports whether the interpreter acts on c
func (c Command) Known() bool {
	return c == CommandMove || c == CommandRight || c == CommandLeft
}

func (c Command) String() string {
	return string(rune(c))
}

// Every rune lexes to exactly one token; anything that is not a command falls
// into Other so lexing never fails.
var commandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Move", Pattern: `M`},
	{Name: "Right", Pattern: `R`},
	{Name: "Left", Pattern: `L`},
	{Name: "Other", Pattern: `[\s\S]`},
})

type commandScript struct {
	Ops []*commandOp `parser:"@@*"`
}

type commandOp struct {
	Pos   lexer.Position
	Value string `parser:"@(Move | Right | Left | Other)"`
}

var commandParser = participle.MustBuild[commandScript](participle.Lexer(commandLexer))

// ParseCommands splits a command string into one Command per rune
func ParseCommands(commands string) ([]Command, error) {
	if commands == "" {
		return nil, nil
	}
	if n := len([]rune(commands)); n > MaxCommandRunes {
		return nil, fmt.Errorf("%w: %d runes (max %d)", ErrCommandTooLong, n, MaxCommandRunes)
	}

	script, err := commandParser.ParseString("commands", commands)
	if err != nil {
		return nil, fmt.Errorf("failed to lex commands: %w", err)
	}

	cmds := make([]Command, 0, len(script.Ops))
	for _, op := range script.Ops {
		for _, r := range op.Value {
			cmds = append(cmds, Command(r))
		}
	}
	return cmds, nil
}

// ValidateCommands returns ErrUnknownCommand listing every rune the
// interpreter would skip. The interpreter itself treats them as no-ops.
func ValidateCommands(commands string) error {
	cmds, err := ParseCommands(commands)
	if err != nil {
		return err
	}

	var unknown []string
	for i, c := range cmds {
		if !c.Known() {
			unknown = append(unknown, fmt.Sprintf("%q at %d", string(rune(c)), i))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, strings.Join(unknown, ", "))
	}
	return nil
}
