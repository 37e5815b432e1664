package testutils

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// botScript is a minimal bot serving the control endpoint on PORT. Sent messages are
// echoed back in the message list and every request is written to logs/bot.log.
const botScript = `const http = require('http');
const fs = require('fs');

fs.mkdirSync('logs', { recursive: true });
const log = (line) => fs.appendFileSync('logs/bot.log', line + '\n');
const messages = [];

const server = http.createServer((req, res) => {
  log(req.method + ' ' + req.url);
  res.setHeader('Content-Type', 'application/json');

  if (req.method === 'POST' && req.url === '/shutdown') {
    res.end('{}');
    setTimeout(() => process.exit(0), 20);
    return;
  }
  if (req.method === 'GET' && req.url === '/messages') {
    res.end(JSON.stringify(messages));
    return;
  }
  if (req.method === 'POST' && req.url === '/messages/send') {
    let body = '';
    req.on('data', (c) => (body += c));
    req.on('end', () => {
      messages.push({ author: 'echo', content: JSON.parse(body).text });
      res.end('{}');
    });
    return;
  }
  res.statusCode = 404;
  res.end('{}');
});

server.listen(Number(process.env.PORT), '127.0.0.1', () => log('ready'));
`

// Bot is a test bot written on disk.
type Bot struct {
	// Dir is the bot directory.
	Dir string
	// ConfigFile is the botctl config file for the bot.
	ConfigFile string
	// Port is the bot control endpoint port.
	Port int
}

// ControlURL returns the bot control endpoint base URL.
func (b Bot) ControlURL() string { return fmt.Sprintf("http://127.0.0.1:%d", b.Port) }

// LogFile returns the bot log file path.
func (b Bot) LogFile() string { return filepath.Join(b.Dir, "logs", "bot.log") }

// WriteBot writes the test bot and its botctl config on dir.
func WriteBot(dir string) (Bot, error) {
	port, err := freePort()
	if err != nil {
		return Bot{}, fmt.Errorf("could not get a free port: %w", err)
	}

	bot := Bot{
		Dir:        filepath.Join(dir, "bot"),
		ConfigFile: filepath.Join(dir, "botctl.yaml"),
		Port:       port,
	}

	if err := os.MkdirAll(bot.Dir, 0o755); err != nil {
		return Bot{}, err
	}
	if err := os.WriteFile(filepath.Join(bot.Dir, "index.js"), []byte(botScript), 0o644); err != nil {
		return Bot{}, err
	}

	config := fmt.Sprintf(`bot:
  dir: bot
  script: index.js
  env:
    PORT: "%d"
control:
  url: %s
  timeout: 2s
supervisor:
  settle_delay: 200ms
  grace_period: 2s
  watchdog_interval: 50ms
  health_check: true
install:
  packages: []
logs:
  poll_interval: 100ms
relay:
  poll_interval: 100ms
`, port, bot.ControlURL())
	if err := os.WriteFile(bot.ConfigFile, []byte(config), 0o644); err != nil {
		return Bot{}, err
	}

	return bot, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()

	return l.(*net.TCPListener).Addr().(*net.TCPAddr).Port, nil
}
