// Package admin provides the Deployer type for managing the lakegate setup
// CloudFormation stack (lakegate-setup). The stack provisions the CloudWatch
// logging role that AWS Transfer Family servers assume to write session logs.
package admin

import _ "embed"

// setupTemplate is the CloudFormation template for the setup stack.
// Embedded at compile time so the binary carries the template without
// requiring file-system access at runtime.
//
//go:embed templates/logging-role.yaml
var setupTemplate string
