package main

import (
	"context"
	"fmt"
)

// activateSession makes sessionID the only ACTIVE academic session.
func (cli *commandLine) activateSession(sessionID string) error {
	s, err := cli.sessSvc.Activate(context.Background(), sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("academic session %q (%s) is now active\n", s.Name, s.ID)
	return nil
}
