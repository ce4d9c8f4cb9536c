// Package command defines the text commands accepted by line-protocol
// clients, with their aliases and help text.
package command

// Categories for organizing commands in help output.
const (
	CategoryDuel   = "duel"
	CategoryBoard  = "board"
	CategorySystem = "system"
	CategoryAdmin  = "admin"
)

// Handler identifiers. Each maps to one frontend action.
const (
	HandlerDuelJoin  = "duel_join"
	HandlerChoose    = "choose"
	HandlerBoardJoin = "board_join"
	HandlerMark      = "mark"
	HandlerRematch   = "rematch"
	HandlerLeave     = "leave"
	HandlerReset     = "reset"
	HandlerHelp      = "help"
	HandlerQuit      = "quit"
)

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument shape, e.g. "duel <room>".
	Usage string
	// Help is the short help text displayed to players.
	Help string
	// Category groups the command in help output.
	Category string
	// Handler names the frontend action the command triggers.
	Handler string
	// MinArgs is the number of arguments the command requires.
	MinArgs int
}

// BuiltinCommands returns every command a line-protocol client may send.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "duel", Aliases: []string{"rps"}, Usage: "duel <room>", Help: "Join a rock-paper-scissors room", Category: CategoryDuel, Handler: HandlerDuelJoin, MinArgs: 1},
		{Name: "choose", Aliases: []string{"throw", "c"}, Usage: "choose <rock|paper|scissors>", Help: "Pick your move for the current round", Category: CategoryDuel, Handler: HandlerChoose, MinArgs: 1},

		{Name: "board", Aliases: []string{"ttt"}, Usage: "board <room>", Help: "Join a tic-tac-toe room", Category: CategoryBoard, Handler: HandlerBoardJoin, MinArgs: 1},
		{Name: "mark", Aliases: []string{"m"}, Usage: "mark <1-9>", Help: "Place your mark; cells are numbered left to right, top to bottom", Category: CategoryBoard, Handler: HandlerMark, MinArgs: 1},
		{Name: "rematch", Aliases: []string{"again"}, Usage: "rematch", Help: "Ask for (or accept) a rematch", Category: CategoryBoard, Handler: HandlerRematch},

		{Name: "leave", Aliases: nil, Usage: "leave <duel|board>", Help: "Leave your current room of that game", Category: CategorySystem, Handler: HandlerLeave, MinArgs: 1},
		{Name: "help", Aliases: []string{"?"}, Usage: "help", Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit"}, Usage: "quit", Help: "Disconnect", Category: CategorySystem, Handler: HandlerQuit},

		{Name: "reset", Aliases: nil, Usage: "reset [room]", Help: "Clear a tic-tac-toe board without a rematch vote", Category: CategoryAdmin, Handler: HandlerReset},
	}
}
