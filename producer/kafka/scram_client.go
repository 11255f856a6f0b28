/*
Copyright © 2023 Red Hat, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kafka

import (
	"github.com/xdg/scram"
)

// SCRAMClient implements sarama.SCRAMClient interface on top of xdg/scram
// client conversation
type SCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

// Begin prepares the client for the SCRAM exchange with the server with a
// user name and a password
func (client *SCRAMClient) Begin(userName, password, authzID string) (err error) {
	client.Client, err = client.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	client.ClientConversation = client.Client.NewConversation()
	return nil
}

// Step steps client through the SCRAM exchange. It is called repeatedly
// until it errors or Done returns true.
func (client *SCRAMClient) Step(challenge string) (response string, err error) {
	return client.ClientConversation.Step(challenge)
}

// Done should return true when the SCRAM conversation is over.
func (client *SCRAMClient) Done() bool {
	return client.ClientConversation.Done()
}
