package client

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
)

type Options struct {
	ServerURL string
	Name      string
	Question  string
	Choices   []string
	RoomCode  string
	Vote      string
	CachePath string
}

// ParseFlags reads client options from args. Either -join or -question must
// be given.
func ParseFlags(args []string) (Options, error) {
	var (
		opts    Options
		choices string
	)

	fs := flag.NewFlagSet("quickpoll", flag.ContinueOnError)
	fs.StringVar(&opts.ServerURL, "server", "", "Server websocket URL (default ws://localhost:$PORT/ws)")
	fs.StringVar(&opts.Name, "name", "", "Display name in the room")
	fs.StringVar(&opts.Question, "question", "", "Create a poll with this question")
	fs.StringVar(&choices, "options", "", "Two comma separated options for a new poll")
	fs.StringVar(&opts.RoomCode, "join", "", "Join the room with this code")
	fs.StringVar(&opts.Vote, "vote", "", "Option to vote for once in the room")
	fs.StringVar(&opts.CachePath, "cache", "", "Vote cache file (default ~/.quickpoll-votes.json)")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	if opts.ServerURL == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3001"
		}
		opts.ServerURL = "ws://localhost:" + port + "/ws"
	}
	if opts.Name == "" {
		opts.Name = os.Getenv("USER")
	}
	if opts.Name == "" {
		return Options{}, errors.New("name required (use -name)")
	}

	opts.RoomCode = strings.ToUpper(strings.TrimSpace(opts.RoomCode))
	switch {
	case opts.RoomCode != "" && opts.Question != "":
		return Options{}, errors.New("use either -join or -question, not both")
	case opts.RoomCode == "" && opts.Question == "":
		return Options{}, errors.New("-join or -question required")
	}
	if opts.Question != "" {
		for _, c := range strings.Split(choices, ",") {
			opts.Choices = append(opts.Choices, strings.TrimSpace(c))
		}
	}

	if opts.CachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		opts.CachePath = filepath.Join(home, ".quickpoll-votes.json")
	}
	return opts, nil
}
