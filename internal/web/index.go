package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Trading Bot Dashboard</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: linear-gradient(135deg, #0f0c29, #302b63, #24243e);
            color: #fff;
            min-height: 100vh;
            padding: 20px;
        }
        header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px; }
        .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 12px; margin-bottom: 20px; }
        .card { background: rgba(255,255,255,0.08); border-radius: 10px; padding: 14px; }
        .card .label { font-size: 12px; opacity: 0.7; }
        .card .value { font-size: 20px; font-weight: 600; margin-top: 4px; }
        .pos { color: #00ff41; } .neg { color: #ff4d4d; }
        button { background: #32b8c6; border: 0; border-radius: 6px; color: #fff; padding: 8px 14px; margin-left: 6px; cursor: pointer; }
        button.danger { background: #c0392b; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; font-size: 13px; }
        th, td { padding: 6px 8px; text-align: left; border-bottom: 1px solid rgba(255,255,255,0.1); }
        #toasts { position: fixed; top: 20px; right: 20px; width: 300px; }
        .toast { border-radius: 8px; padding: 10px; margin-bottom: 8px; background: #333; white-space: pre-line; }
        .toast.success { background: #1e8449; } .toast.error { background: #a93226; }
        .toast.warning { background: #b9770e; } .toast.info { background: #2471a3; }
        canvas { background: rgba(255,255,255,0.05); border-radius: 10px; width: 100%; height: 220px; }
    </style>
</head>
<body>
    <header>
        <h2>Trading Bot Dashboard <span id="bot-state"></span></h2>
        <div>
            <span id="clock"></span>
            <span id="last-updated"></span>
            <span id="market"></span>
            <button id="toggle" onclick="post('/api/bot/toggle')">Start Bot</button>
            <button onclick="post('/api/scan')">Scan</button>
            <button class="danger" onclick="squareOff()">Square Off</button>
        </div>
    </header>

    <div class="cards" id="cards"></div>
    <canvas id="chart" width="1000" height="220"></canvas>
    <h3>Positions</h3>
    <table><thead><tr><th>Symbol</th><th>Qty</th><th>Buy</th><th>Current</th><th>Invested</th><th>P&amp;L</th><th>%</th></tr></thead><tbody id="positions"></tbody></table>
    <h3>Signals (<span id="signal-count">0</span>)</h3>
    <table><thead><tr><th>Symbol</th><th>Signal</th><th>Price</th><th>Score</th><th>Reasons</th></tr></thead><tbody id="signals"></tbody></table>
    <h3>Trades</h3>
    <table><thead><tr><th>Time</th><th>Symbol</th><th>Action</th><th>Qty</th><th>Price</th><th>P&amp;L</th></tr></thead><tbody id="trades"></tbody></table>
    <div id="toasts"></div>

    <script>
        const num = v => Number(v || 0).toFixed(2);
        const cls = v => Number(v) >= 0 ? 'pos' : 'neg';
        const esc = v => String(v == null ? '' : v).replace(/[&<>"']/g, c =>
            ({ '&': '&amp;', '<': '&lt;', '>': '&gt;', '"': '&quot;', "'": '&#39;' })[c]);

        async function post(path, body) {
            await fetch(path, { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body || {}) });
        }

        function squareOff() {
            if (confirm('Close ALL open positions?')) post('/api/squareoff', { confirm: true });
        }

        function toast(n) {
            const el = document.createElement('div');
            el.className = 'toast ' + n.severity;
            el.textContent = n.title + '\n' + n.message;
            document.getElementById('toasts').appendChild(el);
            setTimeout(() => el.remove(), 4000);
        }

        function rows(id, items, fn) {
            document.getElementById(id).innerHTML = (items || []).map(fn).join('');
        }

        function drawChart(chart) {
            const c = document.getElementById('chart'), g = c.getContext('2d');
            g.clearRect(0, 0, c.width, c.height);
            const all = chart.datasets.flatMap(d => d.data);
            if (all.length === 0) return;
            const min = Math.min(...all), max = Math.max(...all), span = (max - min) || 1;
            const n = chart.labels.length;
            chart.datasets.forEach(d => {
                g.strokeStyle = d.color; g.beginPath();
                d.data.forEach((v, i) => {
                    const x = n > 1 ? i * (c.width - 20) / (n - 1) + 10 : c.width / 2;
                    const y = c.height - 10 - (v - min) / span * (c.height - 20);
                    i ? g.lineTo(x, y) : g.moveTo(x, y);
                });
                g.stroke();
            });
        }

        function render(d) {
            const active = d.bot === 'active';
            document.getElementById('bot-state').textContent = active ? '🟢' : '⚪';
            document.getElementById('toggle').textContent = active ? 'Stop Bot' : 'Start Bot';
            if (d.market) document.getElementById('market').textContent = d.market.is_open ? 'Market open' : 'Market closed';
            const updated = new Date(d.last_updated);
            if (updated.getFullYear() > 1) {
                document.getElementById('last-updated').textContent =
                    'Last updated: ' + updated.toLocaleTimeString('en-GB', { hour12: false });
            }
            const p = d.portfolio;
            if (p) {
                const cards = [['Total Value', p.total_value], ['Cash', p.cash], ['Invested', p.portfolio_value],
                    ['Unrealized P&L', p.unrealized_pnl], ['Realized P&L', p.realized_pnl], ['Total P&L', p.total_pnl],
                    ['P&L %', p.pnl_percent], ['Win Rate %', p.win_rate], ['Trades', p.total_trades], ['Positions', p.active_positions]];
                document.getElementById('cards').innerHTML = cards.map(([k, v]) =>
                    '<div class="card"><div class="label">' + k + '</div><div class="value">' + esc(v) + '</div></div>').join('');
                rows('positions', p.positions, r => '<tr><td>' + esc(r.symbol) + '</td><td>' + esc(r.qty) + '</td><td>' + esc(r.buy_price) +
                    '</td><td>' + esc(r.current_price) + '</td><td>' + esc(r.invested) + '</td><td class="' + cls(r.pnl) + '">' + esc(r.pnl) +
                    '</td><td class="' + cls(r.pnl_percent) + '">' + esc(r.pnl_percent) + '</td></tr>');
            }
            document.getElementById('signal-count').textContent = d.signal_count;
            rows('signals', d.signals, s => '<tr><td>' + esc(s.symbol) + '</td><td>' + esc(s.signal) + '</td><td>' + num(s.price) +
                '</td><td>' + num(s.score) + '</td><td>' + esc(s.reasons) + '</td></tr>');
            rows('trades', d.trades, t => '<tr><td>' + esc(t.timestamp) + '</td><td>' + esc(t.symbol) + '</td><td>' + esc(t.action) +
                '</td><td>' + esc(t.qty) + '</td><td>' + num(t.price) + '</td><td class="' + cls(t.pnl) + '">' + num(t.pnl) + '</td></tr>');
            drawChart(d.chart);
        }

        function connect() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onmessage = e => {
                const f = JSON.parse(e.data);
                if (f.type === 'dashboard') render(f.data);
                else if (f.type === 'notification') toast(f.data);
                else if (f.type === 'clock') document.getElementById('clock').textContent = f.data;
            };
            ws.onclose = () => setTimeout(connect, 2000);
        }
        connect();
    </script>
</body>
</html>
`
