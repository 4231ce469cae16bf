package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"flagset"
)

func main() {
	app := &cli.App{
		Name:  "flagset",
		Usage: "inspect and edit integer-backed flag registers",
		Commands: []*cli.Command{
			inspectCommand(),
			initCommand(),
			setCommand("set", true),
			setCommand("clear", false),
			showCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mappingFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "mapping",
		Aliases:  []string{"m"},
		Usage:    "TOML mapping file declaring the flags",
		Required: required,
	}
}

func storeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "store",
		Aliases:  []string{"s"},
		Usage:    "store file holding the flag register",
		Required: true,
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "decode an integer value against a mapping",
		Flags: []cli.Flag{
			mappingFlag(true),
			&cli.StringFlag{
				Name:  "value",
				Usage: "register value to decode",
				Value: "0",
			},
			&cli.BoolFlag{
				Name:  "active",
				Usage: "print only the flags that are on, with their bit values",
			},
		},
		Action: func(c *cli.Context) error {
			m, err := flagset.LoadMapping(c.String("mapping"))
			if err != nil {
				return err
			}
			value, err := strconv.ParseUint(c.String("value"), 0, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid register value %q", c.String("value"))
			}
			fs, err := flagset.New(value, m)
			if err != nil {
				return err
			}
			return printExport(fs, c.Bool("active"))
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "create a store file from a mapping and an initial value",
		ArgsUsage: "STORE",
		Flags: []cli.Flag{
			mappingFlag(true),
			&cli.StringFlag{
				Name:  "value",
				Usage: "initial register value",
				Value: "0",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one store path argument")
			}
			m, err := flagset.LoadMapping(c.String("mapping"))
			if err != nil {
				return err
			}
			value, err := strconv.ParseUint(c.String("value"), 0, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid register value %q", c.String("value"))
			}
			fs, err := flagset.New(value, m)
			if err != nil {
				return err
			}
			s, err := flagset.OpenStore(c.Args().First(), 0644, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Save(fs); err != nil {
				return err
			}
			log.Infof("initialized %s with %d flags, value %d", s.Path(), len(fs.Names()), fs.Value())
			return nil
		},
	}
}

func setCommand(name string, on bool) *cli.Command {
	usage := "turn the named flags on in a store"
	if !on {
		usage = "turn the named flags off in a store"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "NAME...",
		Flags:     []cli.Flag{storeFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("expected at least one flag name")
			}
			s, err := flagset.OpenStore(c.String("store"), 0644, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			fs, err := s.Load()
			if err != nil {
				return err
			}
			for _, n := range c.Args().Slice() {
				if err := fs.Set(n, on); err != nil {
					return err
				}
			}
			if err := s.Save(fs); err != nil {
				return err
			}
			log.Infof("%s: value is now %d", s.Path(), fs.Value())
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "print the flag export of a store",
		Flags: []cli.Flag{
			storeFlag(),
			&cli.BoolFlag{
				Name:  "active",
				Usage: "print only the flags that are on, with their bit values",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := flagset.OpenStore(c.String("store"), 0644, &flagset.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer s.Close()
			fs, err := s.Load()
			if err != nil {
				return err
			}
			return printExport(fs, c.Bool("active"))
		},
	}
}

func printExport(fs *flagset.FlagSet, active bool) error {
	var data []byte
	var err error
	if active {
		data, err = fs.ActiveJSON()
	} else {
		data, err = json.Marshal(fs)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
