package irc

// irc commands sent or handled by the client.
const (
	CmdCap     = "CAP"     // IRCv3 Capability negotiation.
	CmdError   = "ERROR"   // Report a serious or fatal error to a peer.
	CmdInvite  = "INVITE"  // Invite a user to a channel.
	CmdJoin    = "JOIN"    // Join a channel.
	CmdKick    = "KICK"    // Request the forced removal of a user from a channel.
	CmdMode    = "MODE"    // User mode.
	CmdNick    = "NICK"    // ":<newnick>" Define a nickname.
	CmdNotice  = "NOTICE"  // Send a notice message to specific users or channels.
	CmdPart    = "PART"    // Leave a channel.
	CmdPass    = "PASS"    // Set a connection password.
	CmdPing    = "PING"    // Test for the presence of an active client or server.
	CmdPong    = "PONG"    // Reply to a PING message.
	CmdPrivmsg = "PRIVMSG" // Send private messages between users, as well as to send messages to channels.
	CmdQuit    = "QUIT"    // Terminate the client session.
	CmdTopic   = "TOPIC"   // Change or view the topic of a channel.
	CmdUser    = "USER"    // Specify the username, hostname and realname of a new user.
)

// irc connection reply codes.
const (
	RplWelcome  = "001" // "Welcome to the Internet Relay Network <nick>!<user>@<host>"
	RplYourHost = "002" // "Your host is <servername>, running version <ver>"
	RplMyInfo   = "004" // "<servername> <version> <available user modes> <available channel modes>"
	RplISupport = "005" // http://www.irc.org/tech_docs/005.html

	RplHostHidden = "396" // "<nick> <host> :is now your displayed host"

	RplErrErroneousNickname = "432" // "<client> <nick> :Erroneus nickname"
	RplErrNicknameInUse     = "433" // "<client> <nick> :Nickname is already in use"
)

// CTCPDelim marks the start and end of a Client-to-Client Protocol message body.
const CTCPDelim = "\x01"

// channelPrefixes are the CHANTYPES most networks advertise in RPL_ISUPPORT.
const channelPrefixes = "#&+!"
