package main

// Options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Config      string `short:"f" long:"config" description:"TOML config path" env:"SCOUT_CONFIG"`
	ForceConfig bool   `long:"force-config" description:"overwrite the llm settings stored in the database"`
	Verbose     bool   `short:"v" long:"verbose" description:"debug logging"`

	Professors *ProfessorsCmd `command:"professors" description:"Find the faculty of a department"`
	Papers     *PapersCmd     `command:"papers" description:"Retrieve and confirm the papers of a professor"`
	Chat       *ChatCmd       `command:"chat" description:"Chat with the research agent"`
	Tools      *ToolsCmd      `command:"tools" description:"List the tools offered to the model"`
}

// NewOptions wires every sub-command back to the root options.
func NewOptions() *Options {
	o := &Options{}
	o.Professors = &ProfessorsCmd{opts: o}
	o.Papers = &PapersCmd{opts: o}
	o.Chat = &ChatCmd{opts: o}
	o.Tools = &ToolsCmd{opts: o}
	return o
}

type ProfessorsCmd struct {
	School     string `short:"s" long:"school" required:"true" description:"school name"`
	Department string `short:"d" long:"department" required:"true" description:"department name"`

	opts *Options
}

type PapersCmd struct {
	School     string `short:"s" long:"school" required:"true" description:"school name"`
	Department string `short:"d" long:"department" required:"true" description:"department name"`
	Professor  string `short:"p" long:"professor" description:"professor name"`
	All        bool   `long:"all" description:"every stored professor of the department"`

	opts *Options
}

type ChatCmd struct {
	NoTools bool   `long:"no-tools" description:"never offer tools to the model"`
	Message string `short:"m" long:"message" description:"send one message and exit"`
	Session string `long:"session" description:"resume and save the named conversation"`

	opts *Options
}

type ToolsCmd struct {
	JSON bool `long:"json" description:"print OpenAI tool definitions as JSON"`

	opts *Options
}
