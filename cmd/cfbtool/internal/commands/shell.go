package commands

import (
	"fmt"

	"github.com/abiosoft/ishell"
	cfb "github.com/asalih/go-cfb"
	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/spf13/cobra"
)

var shellCMD = &cobra.Command{
	Use:   "shell",
	Short: "Browse a compound file interactively",
	Args:  cobra.NoArgs,
	Run:   shellFunc,
}

func init() {
	common.AddFileFlag(shellCMD, &vFile)
}

func shellFunc(cmd *cobra.Command, _ []string) {
	s := common.OpenDocument(cmd, vFile, false)
	defer common.CloseDocument(cmd, s)

	shell := ishell.New()
	shell.Set("storage", s)
	shell.SetPrompt(prompt(s))

	for _, c := range shellCommands(shell) {
		shell.AddCmd(c)
	}

	shell.Run()
}

func prompt(s *cfb.Storage) string {
	return s.Path() + " > "
}

func shellCommands(shell *ishell.Shell) []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "pwd",
			Help: "print the current storage",
			Func: func(c *ishell.Context) {
				c.Println(c.Get("storage").(*cfb.Storage).Path())
			},
		},
		{
			Name: "cd",
			Help: "enter a storage, .. leaves it",
			Func: func(c *ishell.Context) {
				s := c.Get("storage").(*cfb.Storage)
				path := "/"
				if len(c.Args) > 0 {
					path = c.Args[0]
				}
				if path == ".." {
					s.LeaveDirectory()
				} else if err := s.EnterDirectory(path); err != nil {
					c.Err(err)
				}
				shell.SetPrompt(prompt(s))
			},
		},
		{
			Name: "ls",
			Help: "list the current storage",
			Func: func(c *ishell.Context) {
				s := c.Get("storage").(*cfb.Storage)
				for _, e := range s.ListEntries() {
					if e.IsStream() {
						c.Printf("%-32s %d\n", e.Name, e.StreamLen)
					} else {
						c.Printf("%-32s <storage>\n", e.Name+"/")
					}
				}
			},
		},
		{
			Name: "cat",
			Help: "print a stream",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Err(fmt.Errorf("usage: cat PATH"))
					return
				}
				s := c.Get("storage").(*cfb.Storage)
				if _, err := copyStream(s, c.Args[0], shellWriter{c}, false); err != nil {
					c.Err(err)
					return
				}
				c.Println()
			},
		},
		{
			Name: "rm",
			Help: "delete a storage or stream",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Err(fmt.Errorf("usage: rm PATH"))
					return
				}
				s := c.Get("storage").(*cfb.Storage)
				if err := s.DeleteEntry(c.Args[0]); err != nil {
					c.Err(err)
				}
				shell.SetPrompt(prompt(s))
			},
		},
	}
}

type shellWriter struct {
	c *ishell.Context
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.c.Print(string(p))
	return len(p), nil
}
