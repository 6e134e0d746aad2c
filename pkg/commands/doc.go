// Package commands implements the Permissions.* admin command surface shared
// by the RCON, console and chat transports.
//
// A command body is split on whitespace; token 0 names the command:
//
//	Permissions.Add <identity> <group>
//	Permissions.AddTimed <identity> <group> <hours> [delayHours]
//	Permissions.AddTribe <tribeId> <group>
//	Permissions.Grant <group> <permission>
//	Permissions.ListGroups
//
// RCON callers get the reply text back. Console callers receive it through a
// Messenger, colored red on failure and green on success (or as a notification
// when SendMessagesAsNotification is set). Listing commands always reply with a
// white server message. The only chat command is /groups, which sends the
// sender's own groups as a chat message.
//
// Parse failures are *SyntaxError values whose text is shown to the caller
// unchanged; backend failures are reported with the backend's error text.
package commands
