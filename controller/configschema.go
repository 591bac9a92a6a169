// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package controller

import (
	"github.com/juju/collections/set"
	"github.com/juju/schema"
)

var configChecker = schema.FieldMap(schema.Fields{
	ListenAddress:        schema.String(),
	DatabasePath:         schema.String(),
	JWTSecret:            schema.String(),
	AccessTokenTTL:       schema.TimeDurationString(),
	VerificationTokenTTL: schema.TimeDurationString(),
	ResetTokenTTL:        schema.TimeDurationString(),
	FrontendURL:          schema.String(),
	MailFrom:             schema.String(),
	SMTPHost:             schema.String(),
	SMTPPort:             schema.ForceInt(),
	SMTPUsername:         schema.String(),
	SMTPPassword:         schema.String(),
	MailRateLimit:        schema.ForceInt(),
	LoggingConfig:        schema.String(),
	LogFile:              schema.String(),
	LogFileMaxSize:       schema.ForceInt(),
	LogFileMaxBackups:    schema.ForceInt(),
	ShutdownTimeout:      schema.TimeDurationString(),
}, schema.Defaults{
	ListenAddress:        DefaultListenAddress,
	DatabasePath:         DefaultDatabasePath,
	AccessTokenTTL:       DefaultAccessTokenTTL.String(),
	VerificationTokenTTL: DefaultVerificationTokenTTL.String(),
	ResetTokenTTL:        DefaultResetTokenTTL.String(),
	FrontendURL:          DefaultFrontendURL,
	MailFrom:             DefaultMailFrom,
	SMTPHost:             schema.Omit,
	SMTPPort:             DefaultSMTPPort,
	SMTPUsername:         schema.Omit,
	SMTPPassword:         schema.Omit,
	MailRateLimit:        DefaultMailRateLimit,
	LoggingConfig:        DefaultLoggingConfig,
	LogFile:              schema.Omit,
	LogFileMaxSize:       DefaultLogFileMaxSize,
	LogFileMaxBackups:    DefaultLogFileMaxBackups,
	ShutdownTimeout:      DefaultShutdownTimeout.String(),
})

var knownKeys = set.NewStrings(
	ListenAddress,
	DatabasePath,
	JWTSecret,
	AccessTokenTTL,
	VerificationTokenTTL,
	ResetTokenTTL,
	FrontendURL,
	MailFrom,
	SMTPHost,
	SMTPPort,
	SMTPUsername,
	SMTPPassword,
	MailRateLimit,
	LoggingConfig,
	LogFile,
	LogFileMaxSize,
	LogFileMaxBackups,
	ShutdownTimeout,
)
